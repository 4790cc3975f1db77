package pixfmt

import "testing"

func TestFrameSize(t *testing.T) {
	tests := []struct {
		f    Format
		w, h int
		want int
	}{
		{YUYV, 640, 480, 640 * 480 * 2},
		{YUYV, 3, 2, 16}, // odd width rounds up to a macropixel
		{RGB24, 640, 480, 640 * 480 * 3},
		{BGR24, 1, 1, 3},
		{MJPEG, 640, 480, 0},
		{YUYV, 0, 480, 0},
	}
	for _, tc := range tests {
		if got := tc.f.FrameSize(tc.w, tc.h); got != tc.want {
			t.Errorf("%s.FrameSize(%d, %d) = %d, want %d", tc.f, tc.w, tc.h, got, tc.want)
		}
	}
}

func TestParseTarget(t *testing.T) {
	if f, err := ParseTarget("YUYV"); err != nil || f != YUYV {
		t.Errorf("ParseTarget(YUYV) = %v, %v", f, err)
	}
	if _, err := ParseTarget("mjpeg"); err == nil {
		t.Error("mjpeg must not be accepted as a conversion target")
	}
	if _, err := Parse("nv12"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestFourCC(t *testing.T) {
	// 'YUYV' little-endian as V4L2 defines it
	if FourCCYUYV != 0x56595559 {
		t.Errorf("FourCCYUYV = %#x", FourCCYUYV)
	}
	if FourCCRGB24 != 0x33424752 {
		t.Errorf("FourCCRGB24 = %#x", FourCCRGB24)
	}
	if MJPEG.FourCC() != FourCCMJPEG {
		t.Error("MJPEG fourcc mismatch")
	}
}
