package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/nayana/internal/app"
	"github.com/ayusman/nayana/internal/calibration"
	"github.com/ayusman/nayana/internal/capture"
	"github.com/ayusman/nayana/internal/landmark"
	"github.com/ayusman/nayana/internal/server"
	"github.com/ayusman/nayana/internal/store"
)

var (
	leftShape  = landmark.EyeShape{Center: image.Pt(60, 60), HalfWidth: 30, HalfHeight: 14}
	rightShape = landmark.EyeShape{Center: image.Pt(160, 60), HalfWidth: 30, HalfHeight: 14}
)

// lookingFrame draws both pupils shifted horizontally by dx.
func lookingFrame(t *testing.T, dx int) *gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(230, 230, 230, 0), 120, 220, gocv.MatTypeCV8UC3)
	dark := color.RGBA{20, 20, 20, 0}
	gocv.Circle(&frame, leftShape.Center.Add(image.Pt(dx, 0)), 6, dark, -1)
	gocv.Circle(&frame, rightShape.Center.Add(image.Pt(dx, 0)), 6, dark, -1)
	t.Cleanup(func() { frame.Close() })
	return &frame
}

func getJSON(t *testing.T, client *http.Client, url string, v any) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, http.StatusOK)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	s, err := store.New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	center := lookingFrame(t, 0)
	right := lookingFrame(t, -18)
	frames := []*gocv.Mat{center, center, center, right, right}

	det := landmark.NewMockDetector()
	det.SetFaces([]landmark.Face{landmark.SyntheticFace(leftShape, rightShape)})

	opts := calibration.DefaultOptions()
	opts.Frames = 3

	application, err := app.New(app.Config{
		Store:       s,
		Camera:      capture.NewMockCamera(frames, false),
		Detector:    det,
		Calibration: opts,
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}

	var summary app.Summary
	t.Run("ProcessVideo", func(t *testing.T) {
		summary, err = application.Process(context.Background(), nil)
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		if summary.Frames != len(frames) {
			t.Errorf("Frames = %d, want %d", summary.Frames, len(frames))
		}
		if !summary.Calibrated {
			t.Error("session should be calibrated after 3 frames")
		}
		if summary.Directions["center"] != 3 || summary.Directions["right"] != 2 {
			t.Errorf("Directions = %v, want 3 center and 2 right", summary.Directions)
		}
	})

	srv := server.New(server.Config{Store: s, Detector: det, Calibration: opts})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	t.Run("ListSessions", func(t *testing.T) {
		var body struct {
			Sessions []struct {
				ID     string `json:"id"`
				Frames int    `json:"frames"`
			} `json:"sessions"`
		}
		getJSON(t, client, ts.URL+"/api/sessions", &body)
		if len(body.Sessions) != 1 || body.Sessions[0].ID != summary.SessionID {
			t.Fatalf("sessions = %+v, want only %s", body.Sessions, summary.SessionID)
		}
		if body.Sessions[0].Frames != len(frames) {
			t.Errorf("frames = %d, want %d", body.Sessions[0].Frames, len(frames))
		}
	})

	t.Run("Readings", func(t *testing.T) {
		var body struct {
			Readings []store.Reading `json:"readings"`
		}
		getJSON(t, client, ts.URL+"/api/sessions/"+summary.SessionID+"/readings", &body)
		if len(body.Readings) != len(frames) {
			t.Fatalf("got %d readings, want %d", len(body.Readings), len(frames))
		}
		if body.Readings[4].Direction != "right" {
			t.Errorf("last reading direction = %q, want right", body.Readings[4].Direction)
		}
	})

	t.Run("Calibration", func(t *testing.T) {
		var body struct {
			Thresholds map[string]int            `json:"thresholds"`
			Samples    []store.CalibrationSample `json:"samples"`
		}
		getJSON(t, client, ts.URL+"/api/sessions/"+summary.SessionID+"/calibration", &body)
		if len(body.Samples) != 2*opts.Frames {
			t.Errorf("got %d samples, want %d", len(body.Samples), 2*opts.Frames)
		}
		for _, side := range []string{"left", "right"} {
			if body.Thresholds[side] != summary.Thresholds[side] {
				t.Errorf("threshold %s = %d, want %d", side, body.Thresholds[side], summary.Thresholds[side])
			}
		}
	})

	t.Run("AnalyzeImage", func(t *testing.T) {
		data, err := gocv.IMEncode(gocv.PNGFileExt, *center)
		if err != nil {
			t.Fatalf("IMEncode() error = %v", err)
		}
		defer data.Close()

		resp, err := client.Post(ts.URL+"/api/analyze", "image/png", bytes.NewReader(data.GetBytes()))
		if err != nil {
			t.Fatalf("POST /api/analyze error = %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var body struct {
			Direction string `json:"direction"`
			Pupils    bool   `json:"pupils_found"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Direction != "center" || !body.Pupils {
			t.Errorf("analyze = %+v, want center with pupils", body)
		}
	})

	t.Run("DeleteSession", func(t *testing.T) {
		if err := s.Sessions().Delete(summary.SessionID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		resp, err := client.Get(ts.URL + "/api/sessions/" + summary.SessionID)
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
		}
	})
}
