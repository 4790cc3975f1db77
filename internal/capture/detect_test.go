package capture

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const autoDetectOutput = `Model                          Port
----------------------------------------------------------
Canon EOS 80D                  usb:001,004
Sony Alpha-A7 III (Control)    usb:002,003
`

func TestParseAutoDetect(t *testing.T) {
	cams := ParseAutoDetect([]byte(autoDetectOutput))
	want := []Camera{
		{Model: "Canon EOS 80D", Port: "usb:001,004"},
		{Model: "Sony Alpha-A7 III (Control)", Port: "usb:002,003"},
	}
	if len(cams) != len(want) {
		t.Fatalf("got %d cameras, want %d: %+v", len(cams), len(want), cams)
	}
	for i := range want {
		if cams[i] != want[i] {
			t.Errorf("camera %d = %+v, want %+v", i, cams[i], want[i])
		}
	}
}

func TestParseAutoDetect_Empty(t *testing.T) {
	out := "Model                          Port\n----------------------------------------------------------\n"
	if cams := ParseAutoDetect([]byte(out)); len(cams) != 0 {
		t.Fatalf("got %+v, want no cameras", cams)
	}
	if cams := ParseAutoDetect(nil); len(cams) != 0 {
		t.Fatalf("got %+v, want no cameras", cams)
	}
}

func TestSelectCamera(t *testing.T) {
	cams := ParseAutoDetect([]byte(autoDetectOutput))

	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{name: "empty takes first", query: "", want: "Canon EOS 80D"},
		{name: "exact", query: "Canon EOS 80D", want: "Canon EOS 80D"},
		{name: "case insensitive", query: "canon eos 80d", want: "Canon EOS 80D"},
		{name: "prefix", query: "sony", want: "Sony Alpha-A7 III (Control)"},
		{name: "unknown", query: "Nikon", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SelectCamera(cams, tc.query)
			if tc.wantErr {
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("err = %v, want ErrNotFound", err)
				}
				if !strings.Contains(err.Error(), "Canon EOS 80D") {
					t.Errorf("error %q does not list detected cameras", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectCamera: %v", err)
			}
			if got.Model != tc.want {
				t.Errorf("model = %q, want %q", got.Model, tc.want)
			}
		})
	}
}

func TestSelectCamera_NoCameras(t *testing.T) {
	if _, err := SelectCamera(nil, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDetect_RunnerFailure(t *testing.T) {
	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("no such file")
	}
	if _, err := Detect(context.Background(), run, "gphoto2"); !errors.Is(err, ErrProtocol) {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
}

func TestDetect_PassesAutoDetectFlag(t *testing.T) {
	var gotName string
	var gotArgs []string
	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte(autoDetectOutput), nil
	}
	cams, err := Detect(context.Background(), run, "/opt/gphoto2")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if gotName != "/opt/gphoto2" || len(gotArgs) != 1 || gotArgs[0] != "--auto-detect" {
		t.Errorf("ran %s %v", gotName, gotArgs)
	}
	if len(cams) != 2 {
		t.Errorf("got %d cameras, want 2", len(cams))
	}
}
