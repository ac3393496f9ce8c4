package gpio

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		driver   string
		wantName string
		wantErr  bool
	}{
		{name: "sim", driver: "sim", wantName: "sim"},
		{name: "empty defaults to sim", driver: "", wantName: "sim"},
		{name: "sysfs", driver: "sysfs", wantName: "sysfs"},
		{name: "unknown", driver: "pigpio", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.driver, false)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.driver, err, tt.wantErr)
			}
			if err == nil && d.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", d.Name(), tt.wantName)
			}
		})
	}
}

func TestSimDriver_WriteRequiresSetup(t *testing.T) {
	d := NewSimDriver()

	if err := d.Write(17, true); !errors.Is(err, ErrPinNotConfigured) {
		t.Fatalf("Write() before Setup error = %v, want ErrPinNotConfigured", err)
	}

	if err := d.Setup(17, false); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := d.Write(17, true); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	level, err := d.Level(17)
	if err != nil {
		t.Fatalf("Level() error = %v", err)
	}
	if !level {
		t.Error("Level() = low, want high")
	}

	want := []Write{{17, false}, {17, true}}
	got := d.History()
	if len(got) != len(want) {
		t.Fatalf("History() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("History()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSimDriver_Fault(t *testing.T) {
	d := NewSimDriver()
	if err := d.Setup(22, false); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	boom := errors.New("line busy")
	d.SetFault(22, boom)
	if err := d.Write(22, true); !errors.Is(err, boom) {
		t.Fatalf("Write() with fault error = %v, want %v", err, boom)
	}

	d.SetFault(22, nil)
	if err := d.Write(22, true); err != nil {
		t.Fatalf("Write() after clearing fault error = %v", err)
	}
}

func TestSimDriver_Close(t *testing.T) {
	d := NewSimDriver()
	if err := d.Setup(5, true); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := d.Write(5, false); !errors.Is(err, ErrDriverClosed) {
		t.Errorf("Write() after Close error = %v, want ErrDriverClosed", err)
	}
}

func TestSysfsDriver_WriteRequiresSetup(t *testing.T) {
	d := NewSysfsDriver(false)
	if err := d.Write(17, true); !errors.Is(err, ErrPinNotConfigured) {
		t.Errorf("Write() before Setup error = %v, want ErrPinNotConfigured", err)
	}
	if _, err := d.Level(17); !errors.Is(err, ErrPinNotConfigured) {
		t.Errorf("Level() before Setup error = %v, want ErrPinNotConfigured", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := d.Setup(17, false); !errors.Is(err, ErrDriverClosed) {
		t.Errorf("Setup() after Close error = %v, want ErrDriverClosed", err)
	}
}
