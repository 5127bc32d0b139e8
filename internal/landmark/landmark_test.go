package landmark

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"testing"
)

func TestSyntheticFace(t *testing.T) {
	left := EyeShape{Center: image.Pt(60, 60), HalfWidth: 12, HalfHeight: 6}
	right := EyeShape{Center: image.Pt(140, 60), HalfWidth: 12, HalfHeight: 6}

	face := SyntheticFace(left, right)

	if len(face.Points) != NumLandmarks {
		t.Fatalf("got %d points, want %d", len(face.Points), NumLandmarks)
	}

	leftPts := face.Select(LeftEye[:])
	if leftPts[0] != image.Pt(48, 60) || leftPts[3] != image.Pt(72, 60) {
		t.Errorf("left eye corners = %v, %v", leftPts[0], leftPts[3])
	}
	rightPts := face.Select(RightEye[:])
	if rightPts[1] != image.Pt(136, 54) || rightPts[4] != image.Pt(144, 66) {
		t.Errorf("right eye lids = %v, %v", rightPts[1], rightPts[4])
	}

	for _, p := range face.Points {
		if !p.In(face.Rect) {
			t.Errorf("point %v outside face rect %v", p, face.Rect)
		}
	}
}

func TestFace_SelectOutOfRange(t *testing.T) {
	face := Face{Points: []image.Point{{1, 1}, {2, 2}}}

	if got := face.Select([]int{0, 5}); got != nil {
		t.Errorf("Select() with out of range index = %v, want nil", got)
	}
	if got := face.Select([]int{1, 0}); len(got) != 2 || got[0] != image.Pt(2, 2) {
		t.Errorf("Select() = %v", got)
	}
}

func TestMockDetector(t *testing.T) {
	m := NewMockDetector()

	faces, err := m.Detect(nil)
	if err != nil || len(faces) != 0 {
		t.Errorf("empty mock: faces=%v err=%v", faces, err)
	}

	m.SetFaces([]Face{{Score: 0.5}})
	faces, _ = m.Detect(nil)
	if len(faces) != 1 {
		t.Errorf("expected 1 face, got %d", len(faces))
	}

	wantErr := errors.New("camera blinded")
	m.SetError(wantErr)
	if _, err := m.Detect(nil); !errors.Is(err, wantErr) {
		t.Errorf("Detect() error = %v, want %v", err, wantErr)
	}

	if m.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", m.Calls())
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{0xff, 0xd8, 0x01, 0x02}

	if err := writeFrame(&buf, payload); err != nil {
		t.Fatalf("writeFrame() error = %v", err)
	}

	out := buf.Bytes()
	if len(out) != 4+len(payload) {
		t.Fatalf("wrote %d bytes, want %d", len(out), 4+len(payload))
	}
	if n := binary.BigEndian.Uint32(out[:4]); n != uint32(len(payload)) {
		t.Errorf("length prefix = %d, want %d", n, len(payload))
	}
	if !bytes.Equal(out[4:], payload) {
		t.Errorf("payload = %v, want %v", out[4:], payload)
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantFaces int
		wantErr   bool
	}{
		{
			name:      "one face",
			line:      `{"faces":[{"points":[[1,2],[3,4]],"box":[0,0,10,12],"score":0.9}]}`,
			wantFaces: 1,
		},
		{
			name:      "no faces",
			line:      `{"faces":[]}`,
			wantFaces: 0,
		},
		{
			name:    "service error",
			line:    `{"error":"model not loaded"}`,
			wantErr: true,
		},
		{
			name:    "malformed",
			line:    `{"faces":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			faces, err := parseResponse([]byte(tt.line))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(faces) != tt.wantFaces {
				t.Errorf("got %d faces, want %d", len(faces), tt.wantFaces)
			}
		})
	}

	faces, _ := parseResponse([]byte(`{"faces":[{"points":[[5,6]],"box":[1,2,30,40],"score":0.75}]}`))
	f := faces[0]
	if f.Points[0] != image.Pt(5, 6) {
		t.Errorf("point = %v, want (5,6)", f.Points[0])
	}
	if f.Rect != image.Rect(1, 2, 30, 40) {
		t.Errorf("rect = %v", f.Rect)
	}
	if f.Score != 0.75 {
		t.Errorf("score = %f, want 0.75", f.Score)
	}
}

func TestNewDlibDetector_MissingService(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	_, err := NewDlibDetector(DefaultConfig())
	if !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("NewDlibDetector() error = %v, want ErrServiceNotFound", err)
	}
}
