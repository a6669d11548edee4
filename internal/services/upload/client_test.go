package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"storyreel/internal/services"
)

// fakeMP3 starts with an ID3v2 tag header, which is enough for MIME sniffing.
func fakeMP3(size int) []byte {
	data := make([]byte, size)
	copy(data, []byte("ID3\x04\x00\x00\x00\x00\x00\x00"))
	return data
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{name: "mp3", data: fakeMP3(512)},
		{name: "empty", data: nil, wantErr: true},
		{name: "png", data: []byte("\x89PNG\r\n\x1a\n0000000000000000"), wantErr: true},
		{name: "too large", data: fakeMP3(MaxBytes + 1), wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.data)
			if tc.wantErr {
				if !errors.Is(err, services.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestUploadSendsMultipart(t *testing.T) {
	payload := fakeMP3(256)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()
		got, _ := io.ReadAll(file)
		if header.Filename != "s1-0.mp3" || !bytes.Equal(got, payload) {
			t.Errorf("unexpected upload %s (%d bytes)", header.Filename, len(got))
		}
		_ = json.NewEncoder(w).Encode(uploadResponse{URL: "https://cdn.example/s1-0.mp3"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, server.Client())
	url, err := client.Upload(context.Background(), "s1-0.mp3", payload)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://cdn.example/s1-0.mp3" {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestUploadServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil)
	_, err := client.Upload(context.Background(), "a.mp3", fakeMP3(64))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
