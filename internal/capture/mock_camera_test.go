package capture

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func TestMockCamera_Playback(t *testing.T) {
	frame1 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame1.Close()
	frame2 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame2.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame1, &frame2}, false)

	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer cam.Close()

	for i := 0; i < 2; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() %d error = %v", i, err)
		}
		f.Close()
	}

	// Third read should fail (no loop)
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrNoMoreFrames) {
		t.Errorf("expected ErrNoMoreFrames, got %v", err)
	}
}

func TestMockCamera_Loop(t *testing.T) {
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame}, true)
	cam.Open()
	defer cam.Close()

	for i := 0; i < 5; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() iteration %d error = %v", i, err)
		}
		f.Close()
	}
}

func TestMockCamera_BlankFrames(t *testing.T) {
	cam := NewMockCamera(nil, false)
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Fatalf("ReadFrame() before Open = %v, want ErrCameraNotOpen", err)
	}

	cam.Open()
	f, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	defer f.Close()
	if f.Cols() != DefaultWidth || f.Rows() != DefaultHeight {
		t.Errorf("blank frame = %dx%d", f.Cols(), f.Rows())
	}
}

func TestMockCamera_OpenCounting(t *testing.T) {
	cam := NewMockCamera(nil, false)
	cam.Open()
	cam.Open()
	if got := cam.Opens(); got != 1 {
		t.Errorf("Opens() = %d after repeated Open, want 1", got)
	}

	cam.Close()
	cam.Open()
	if got := cam.Opens(); got != 2 {
		t.Errorf("Opens() = %d after reopen, want 2", got)
	}
}

func TestMockCamera_OpenError(t *testing.T) {
	cam := NewMockCamera(nil, false)
	denied := errors.New("permission denied")
	cam.SetOpenError(denied)

	if err := cam.Open(); !errors.Is(err, denied) {
		t.Errorf("Open() = %v, want %v", err, denied)
	}
	if cam.IsOpen() {
		t.Error("camera should stay closed after a failed Open")
	}
}

func TestMockCamera_ImplementsCamera(t *testing.T) {
	var _ Camera = NewMockCamera(nil, false)
}

func TestMockCamera_FPS(t *testing.T) {
	cam := NewMockCamera(nil, true)
	if got := cam.FPS(); got != DefaultFPS {
		t.Errorf("default FPS = %d, want %d", got, DefaultFPS)
	}
	cam.SetFPS(60)
	cam.SetFPS(0)
	if got := cam.FPS(); got != 60 {
		t.Errorf("FPS = %d, want 60", got)
	}
}
