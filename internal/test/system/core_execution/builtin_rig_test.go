package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"resty.dev/v3"

	"github.com/vk/labrig/internal/app"
	"github.com/vk/labrig/internal/cmdrun"
	"github.com/vk/labrig/internal/hclrig"
	"github.com/vk/labrig/internal/workspace"
	"github.com/vk/labrig/modules/clone_repo"
	"github.com/vk/labrig/modules/drive_fetch"
	"github.com/vk/labrig/modules/extract_archive"
	"github.com/vk/labrig/modules/fetch_file"
	"github.com/vk/labrig/modules/install_package"
	"github.com/vk/labrig/modules/make_dir"
	"github.com/vk/labrig/modules/move_file"
)

// mapDownloader serves canned drive payloads keyed by file ID.
type mapDownloader struct {
	payloads map[string][]byte
}

func (d *mapDownloader) Fetch(_ context.Context, fileID, dest string) (int64, error) {
	payload, ok := d.payloads[fileID]
	if !ok {
		return 0, fmt.Errorf("no canned payload for drive file '%s'", fileID)
	}
	if err := os.WriteFile(dest, payload, 0644); err != nil {
		return 0, err
	}
	return int64(len(payload)), nil
}

// seedFile writes a small file, creating parent directories.
func seedFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to seed %s: %v", path, err)
	}
}

// Test for: the builtin rig provisions the full workspace layout without
// touching the network or the host package manager
func TestCoreExecution_BuiltinRig_ProvisionsFullLayout(t *testing.T) {
	// --- Arrange ---
	workspaceDir := t.TempDir()

	// Plain HTTP fetches skip artifacts that are already present, so
	// seeding them keeps the client idle. The tensorflow tarballs must be
	// real archives because the extraction steps run for real.
	seedFile(t, filepath.Join(workspaceDir, "data", "yolov3.weights"), "seeded yolo weights")
	ssdArchive := buildArchive(t, map[string]string{
		"ssd_mobilenet_v1_coco_2018_01_28/frozen_inference_graph.pb": "ssd graph",
	})
	seedFile(t, filepath.Join(workspaceDir, "data", "ssd_mobilenet_v1_coco_2018_01_28.tar.gz"), string(ssdArchive))
	rcnnArchive := buildArchive(t, map[string]string{
		"faster_rcnn_resnet101_coco_2018_01_28/frozen_inference_graph.pb": "faster rcnn graph",
	})
	seedFile(t, filepath.Join(workspaceDir, "data", "faster_rcnn_resnet101_coco_2018_01_28.tar.gz"), string(rcnnArchive))

	// Populated clone destinations read as previous clones.
	seedFile(t, filepath.Join(workspaceDir, "conv_reg_vot", "tracker.py"), "tracker")
	seedFile(t, filepath.Join(workspaceDir, "DaSiamRPN", "run.py"), "siamrpn")
	seedFile(t, filepath.Join(workspaceDir, "drn", "segment.py"), "drn")

	// The CARLA tarball unpacks flat into CARLA_0.8.4/, like the real
	// distribution.
	downloader := &mapDownloader{payloads: map[string][]byte{
		"1d3TTzfT8tOm_hIyzdcBzL0T8aCS2IJhd": []byte("drn weights"),
		"1YbPUQVTYw_slAvk_DchvRY-7B6rnSXP9": []byte("siamrpn model"),
		"1tjZwtar-U8uJFOR0g5wE2aT-zt9M0oaM": []byte("vgg weights"),
		"1ZtVt1AqdyGxgyTm69nzuwrOYoPUn_Dsm": buildArchive(t, map[string]string{
			"CarlaUE4.sh":               "#!/bin/sh",
			"PythonClient/carla/README": "python client",
		}),
	}}

	ws, err := workspace.Open(workspaceDir)
	if err != nil {
		t.Fatalf("failed to open workspace: %v", err)
	}
	client := resty.New()
	t.Cleanup(func() { client.Close() })
	runner := &cmdrun.RecordingRunner{}

	appConfig := &app.Config{
		Workspace: workspaceDir,
		LogFormat: "text",
		LogLevel:  "debug",
	}
	testApp, logBuffer := app.SetupAppTest(t, appConfig, hclrig.NewLoader(),
		&make_dir.Module{WS: ws},
		&fetch_file.Module{WS: ws, Client: client},
		&extract_archive.Module{WS: ws},
		&install_package.Module{Runner: runner},
		&clone_repo.Module{WS: ws, Runner: runner},
		&move_file.Module{WS: ws},
		&drive_fetch.Module{WS: ws, Downloader: downloader},
	)

	// --- Act ---
	runErr := testApp.Run(context.Background(), appConfig)

	// --- Assert ---
	if runErr != nil {
		t.Fatalf("app.Run() returned an unexpected error: %v", runErr)
	}

	if got := strings.Count(logBuffer.String(), "✅ Finished step"); got != 19 {
		t.Errorf("expected all 19 builtin steps to finish, got %d", got)
	}

	// The only commands are the three package installs; no git, no wget.
	wantCalls := []string{
		"pip install --user gdown",
		"pip install --user matplotlib",
		"sudo apt-get install -y python-tk",
	}
	calls := runner.Calls()
	if len(calls) != len(wantCalls) {
		t.Fatalf("expected %d commands, got %d: %v", len(wantCalls), len(calls), calls)
	}
	for i, want := range wantCalls {
		if got := strings.Join(calls[i].Argv, " "); got != want {
			t.Errorf("command %d: expected %q, got %q", i, want, got)
		}
	}

	// Seeded artifacts were skipped, not replaced.
	yolo, err := os.ReadFile(filepath.Join(workspaceDir, "data", "yolov3.weights"))
	if err != nil || string(yolo) != "seeded yolo weights" {
		t.Errorf("expected the seeded yolo weights to be untouched, got %q (err %v)", yolo, err)
	}
	if !strings.Contains(logBuffer.String(), "Destination already populated, skipping clone") {
		t.Errorf("expected the populated clone destinations to be skipped")
	}

	// The workspace ends in the documented layout.
	assertWorkspaceFile := func(rel, want string) {
		t.Helper()
		got, err := os.ReadFile(filepath.Join(workspaceDir, rel))
		if err != nil {
			t.Errorf("expected %s in the provisioned workspace: %v", rel, err)
			return
		}
		if string(got) != want {
			t.Errorf("%s: expected content %q, got %q", rel, want, got)
		}
	}
	assertWorkspaceFile("data/ssd_mobilenet_v1_coco_2018_01_28/frozen_inference_graph.pb", "ssd graph")
	assertWorkspaceFile("data/faster_rcnn_resnet101_coco_2018_01_28/frozen_inference_graph.pb", "faster rcnn graph")
	assertWorkspaceFile("data/drn_d_22_cityscapes.pth", "drn weights")
	assertWorkspaceFile("data/SiamRPNVOT.model", "siamrpn model")
	assertWorkspaceFile("conv_reg_vot/vgg_model/vgg16.npy", "vgg weights")
	assertWorkspaceFile("CARLA_0.8.4/CarlaUE4.sh", "#!/bin/sh")

	// The relocation moved the file rather than copying it.
	if _, err := os.Stat(filepath.Join(workspaceDir, "data", "vgg16.npy")); !os.IsNotExist(err) {
		t.Errorf("expected data/vgg16.npy to be gone after the relocation, got err %v", err)
	}

	if !strings.Contains(logBuffer.String(), "🏁 Run finished.") {
		t.Errorf("expected the closing summary line in logs")
	}
}
