// Package tray provides a system tray menu for the instrument.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onPower    func(on bool) error
	onWaveform func() string
	onRecord   func(format string) error
	onFinish   func() error
	onOpenUI   func()
	onQuit     func()
	powered    bool
	recording  string
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuPower       *systray.MenuItem
	menuWaveform    *systray.MenuItem
	menuRecordAudio *systray.MenuItem
	menuRecordVideo *systray.MenuItem
	menuFinish      *systray.MenuItem
}

// New creates a new Tray instance, powered off.
func New() *Tray {
	return &Tray{}
}

// OnPower sets the callback called when power is toggled. A failed power
// on leaves the menu showing off.
func (t *Tray) OnPower(fn func(on bool) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPower = fn
}

// OnWaveform sets the callback that advances the waveform and returns its name.
func (t *Tray) OnWaveform(fn func() string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onWaveform = fn
}

// OnRecord sets the callback that starts a recording in the given format.
func (t *Tray) OnRecord(fn func(format string) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRecord = fn
}

// OnFinish sets the callback that finishes the active recording.
func (t *Tray) OnFinish(fn func() error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFinish = fn
}

// OnOpenUI sets the callback called when the open UI menu item is clicked.
func (t *Tray) OnOpenUI(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpenUI = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray loop.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Handchord")
	systray.SetTooltip("Handchord gesture instrument")

	t.mu.Lock()
	t.menuPower = systray.AddMenuItem(powerTitle(t.powered), "Start or stop the instrument")
	t.menuWaveform = systray.AddMenuItem("Waveform: sine", "Next oscillator waveform")
	systray.AddSeparator()
	t.menuRecordAudio = systray.AddMenuItem("Record audio", "Record the master output as MP3")
	t.menuRecordVideo = systray.AddMenuItem("Record video", "Record the stage as WebM")
	t.menuFinish = systray.AddMenuItem("Finish recording", "Stop and save the recording")
	t.applyRecording()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open UI...", "Open the instrument in the browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Handchord")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuPower.ClickedCh:
				t.handlePower()
			case <-t.menuWaveform.ClickedCh:
				t.handleWaveform()
			case <-t.menuRecordAudio.ClickedCh:
				t.handleRecord("audio")
			case <-t.menuRecordVideo.ClickedCh:
				t.handleRecord("video")
			case <-t.menuFinish.ClickedCh:
				t.handleFinish()
			case <-menuOpen.ClickedCh:
				t.handleOpenUI()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// handlePower toggles power through the callback.
func (t *Tray) handlePower() {
	t.mu.RLock()
	on := !t.powered
	callback := t.onPower
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		if err := callback(on); err != nil {
			on = false
		}
	}
	t.SetPowered(on)
}

func (t *Tray) handleWaveform() {
	t.mu.RLock()
	callback := t.onWaveform
	t.mu.RUnlock()

	if callback != nil {
		t.SetWaveform(callback())
	}
}

func (t *Tray) handleRecord(format string) {
	t.mu.RLock()
	callback := t.onRecord
	t.mu.RUnlock()

	if callback == nil {
		return
	}
	if err := callback(format); err == nil {
		t.SetRecording(format)
	}
}

func (t *Tray) handleFinish() {
	t.mu.RLock()
	callback := t.onFinish
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
	t.SetRecording("")
}

func (t *Tray) handleOpenUI() {
	t.mu.RLock()
	callback := t.onOpenUI
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetPowered updates the power item.
func (t *Tray) SetPowered(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.powered = on
	if t.menuPower != nil {
		t.menuPower.SetTitle(powerTitle(on))
	}
}

// SetWaveform updates the waveform display in the menu.
func (t *Tray) SetWaveform(name string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuWaveform != nil {
		t.menuWaveform.SetTitle("Waveform: " + name)
	}
}

// SetRecording updates the record items; "" means idle.
func (t *Tray) SetRecording(format string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.recording = format
	t.applyRecording()
}

func (t *Tray) applyRecording() {
	if t.menuFinish == nil {
		return
	}
	if t.recording == "" {
		t.menuRecordAudio.Enable()
		t.menuRecordVideo.Enable()
		t.menuFinish.Disable()
		return
	}
	t.menuRecordAudio.Disable()
	t.menuRecordVideo.Disable()
	t.menuFinish.Enable()
}

// IsPowered returns the power state shown in the menu.
func (t *Tray) IsPowered() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.powered
}

// Recording returns the recording format shown in the menu, or "".
func (t *Tray) Recording() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.recording
}

func powerTitle(on bool) string {
	if on {
		return "● Power on"
	}
	return "○ Power off"
}
