package main

import (
	"testing"

	"storyreel/internal/testsupport"
)

func TestSharedCollaboratorsUploadToggle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	collab := sharedCollaborators(cfg, nil)
	if collab.Synthesizer == nil || collab.Fonts == nil {
		t.Fatal("expected synthesizer and font loader")
	}
	if collab.Uploader != nil {
		t.Fatal("upload should stay disabled by default")
	}

	cfg = testsupport.NewConfig(t, testsupport.WithUploadURL("http://127.0.0.1:1/upload"))
	if sharedCollaborators(cfg, nil).Uploader == nil {
		t.Fatal("expected an uploader when upload is enabled")
	}
}
