package app

import (
	"resty.dev/v3"

	"github.com/vk/labrig/internal/cmdrun"
	"github.com/vk/labrig/internal/gdrive"
	"github.com/vk/labrig/internal/registry"
	"github.com/vk/labrig/internal/workspace"
	"github.com/vk/labrig/modules/clone_repo"
	"github.com/vk/labrig/modules/drive_fetch"
	"github.com/vk/labrig/modules/extract_archive"
	"github.com/vk/labrig/modules/fetch_file"
	"github.com/vk/labrig/modules/install_package"
	"github.com/vk/labrig/modules/make_dir"
	"github.com/vk/labrig/modules/move_file"
	"github.com/vk/labrig/modules/run_script"
	"github.com/vk/labrig/modules/s3_fetch"
)

// coreModules is the definitive list of all step modules compiled into the
// labrig binary, bound to the live workspace and network clients. The
// returned cleanup closes those clients.
func coreModules(ws *workspace.Workspace, appConfig *Config) ([]registry.Module, func()) {
	client := resty.New()
	downloader := gdrive.NewClient()
	runner := cmdrun.NewExecRunner()

	modules := []registry.Module{
		&make_dir.Module{WS: ws},
		&fetch_file.Module{WS: ws, Client: client, Overwrite: appConfig.Overwrite},
		&extract_archive.Module{WS: ws},
		&install_package.Module{Runner: runner},
		&clone_repo.Module{WS: ws, Runner: runner},
		&move_file.Module{WS: ws},
		&drive_fetch.Module{WS: ws, Downloader: downloader, Overwrite: appConfig.Overwrite},
		&run_script.Module{WS: ws, Runner: runner},
		&s3_fetch.Module{WS: ws, Dial: s3_fetch.DialMinio},
	}

	cleanup := func() {
		client.Close()
		downloader.Close()
	}
	return modules, cleanup
}
