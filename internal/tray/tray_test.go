package tray

import (
	"errors"
	"testing"
)

func TestTray_Power(t *testing.T) {
	t.Run("toggles through the callback", func(t *testing.T) {
		tr := New()
		var got []bool
		tr.OnPower(func(on bool) error {
			got = append(got, on)
			return nil
		})

		tr.handlePower()
		tr.handlePower()

		if len(got) != 2 || !got[0] || got[1] {
			t.Errorf("callback args = %v, want [true false]", got)
		}
		if tr.IsPowered() {
			t.Error("tray should be off after two toggles")
		}
	})

	t.Run("failed power on stays off", func(t *testing.T) {
		tr := New()
		tr.OnPower(func(on bool) error { return errors.New("camera denied") })

		tr.handlePower()

		if tr.IsPowered() {
			t.Error("tray should stay off when power on fails")
		}
	})
}

func TestTray_Recording(t *testing.T) {
	tr := New()
	finished := 0
	tr.OnRecord(func(format string) error {
		if format == "video" {
			return errors.New("no encoder")
		}
		return nil
	})
	tr.OnFinish(func() error {
		finished++
		return nil
	})

	tr.handleRecord("video")
	if tr.Recording() != "" {
		t.Errorf("Recording() = %q after failed start, want idle", tr.Recording())
	}

	tr.handleRecord("audio")
	if tr.Recording() != "audio" {
		t.Errorf("Recording() = %q, want audio", tr.Recording())
	}

	tr.handleFinish()
	if tr.Recording() != "" || finished != 1 {
		t.Errorf("Recording() = %q, finished = %d; want idle, 1", tr.Recording(), finished)
	}
}

func TestTray_Callbacks(t *testing.T) {
	tr := New()
	opened := false
	waveforms := 0
	tr.OnOpenUI(func() { opened = true })
	tr.OnWaveform(func() string {
		waveforms++
		return "square"
	})

	tr.handleOpenUI()
	tr.handleWaveform()

	if !opened || waveforms != 1 {
		t.Errorf("opened = %v, waveforms = %d", opened, waveforms)
	}
}

func TestTray_NilCallbacks(t *testing.T) {
	tr := New()
	tr.handlePower()
	tr.handleWaveform()
	tr.handleRecord("audio")
	tr.handleFinish()
	tr.handleOpenUI()

	if !tr.IsPowered() {
		t.Error("power toggles even without a callback")
	}
}
