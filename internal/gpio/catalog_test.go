package gpio

import (
	"errors"
	"testing"
)

func TestCatalog_Check(t *testing.T) {
	c := NewCatalog([]int{4})

	tests := []struct {
		name    string
		pin     int
		wantErr error
	}{
		{name: "general purpose", pin: 17},
		{name: "i2c pin usable as output", pin: 2},
		{name: "uart pin usable as output", pin: 14},
		{name: "eeprom pin excluded", pin: 0, wantErr: ErrUnknownPin},
		{name: "beyond header", pin: 28, wantErr: ErrUnknownPin},
		{name: "negative", pin: -1, wantErr: ErrUnknownPin},
		{name: "reserved by config", pin: 4, wantErr: ErrPinReserved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Check(tt.pin)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Check(%d) error = %v, want nil", tt.pin, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Check(%d) error = %v, want %v", tt.pin, err, tt.wantErr)
			}
		})
	}
}

func TestCatalog_Usable(t *testing.T) {
	c := NewCatalog([]int{4})

	usable := c.Usable(map[int]bool{17: true, 18: true})

	all := c.All()
	if len(usable) != len(all)-2 {
		t.Fatalf("len(Usable) = %d, want %d", len(usable), len(all)-2)
	}
	for i, p := range usable {
		if p.Number == 17 || p.Number == 18 || p.Number == 4 {
			t.Errorf("Usable() includes pin %d", p.Number)
		}
		if i > 0 && usable[i-1].Number >= p.Number {
			t.Errorf("Usable() not ordered at index %d", i)
		}
	}
}

func TestCatalog_Categories(t *testing.T) {
	c := NewCatalog(nil)

	tests := []struct {
		pin      int
		category Category
		typ      string
	}{
		{2, CategoryI2C, "i2c-sda"},
		{3, CategoryI2C, "i2c-scl"},
		{10, CategorySPI, "spi-mosi"},
		{14, CategoryUART, "uart-tx"},
		{15, CategoryUART, "uart-rx"},
		{17, CategoryGPIO, "digital"},
	}

	for _, tt := range tests {
		p, ok := c.Lookup(tt.pin)
		if !ok {
			t.Fatalf("Lookup(%d) not found", tt.pin)
		}
		if p.Category != tt.category || p.Type != tt.typ {
			t.Errorf("pin %d = (%s, %s), want (%s, %s)", tt.pin, p.Category, p.Type, tt.category, tt.typ)
		}
	}
}
