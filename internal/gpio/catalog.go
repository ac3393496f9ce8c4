package gpio

import (
	"fmt"
	"sort"
)

// Category groups pins by the peripheral that can claim them.
type Category string

// Pin categories.
const (
	CategoryGPIO Category = "gpio"
	CategoryI2C  Category = "i2c"
	CategoryUART Category = "uart"
	CategorySPI  Category = "spi"
)

// Pin describes one BCM line on the 40-pin header.
type Pin struct {
	Number      int      `json:"pin_number"`
	Type        string   `json:"type"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
}

// headerPins lists BCM 2-27. BCM 0 and 1 carry the HAT ID EEPROM and are never offered.
var headerPins = []Pin{
	{2, "i2c-sda", CategoryI2C, "I2C1 data (SDA), fixed 1.8k pull-up"},
	{3, "i2c-scl", CategoryI2C, "I2C1 clock (SCL), fixed 1.8k pull-up"},
	{4, "digital", CategoryGPIO, "General purpose, GPCLK0"},
	{5, "digital", CategoryGPIO, "General purpose"},
	{6, "digital", CategoryGPIO, "General purpose"},
	{7, "spi-ce1", CategorySPI, "SPI0 chip select 1"},
	{8, "spi-ce0", CategorySPI, "SPI0 chip select 0"},
	{9, "spi-miso", CategorySPI, "SPI0 MISO"},
	{10, "spi-mosi", CategorySPI, "SPI0 MOSI"},
	{11, "spi-sclk", CategorySPI, "SPI0 clock"},
	{12, "digital", CategoryGPIO, "General purpose, PWM0"},
	{13, "digital", CategoryGPIO, "General purpose, PWM1"},
	{14, "uart-tx", CategoryUART, "UART0 transmit"},
	{15, "uart-rx", CategoryUART, "UART0 receive"},
	{16, "digital", CategoryGPIO, "General purpose"},
	{17, "digital", CategoryGPIO, "General purpose"},
	{18, "digital", CategoryGPIO, "General purpose, PCM clock"},
	{19, "digital", CategoryGPIO, "General purpose, PCM frame sync"},
	{20, "digital", CategoryGPIO, "General purpose, PCM data in"},
	{21, "digital", CategoryGPIO, "General purpose, PCM data out"},
	{22, "digital", CategoryGPIO, "General purpose"},
	{23, "digital", CategoryGPIO, "General purpose"},
	{24, "digital", CategoryGPIO, "General purpose"},
	{25, "digital", CategoryGPIO, "General purpose"},
	{26, "digital", CategoryGPIO, "General purpose"},
	{27, "digital", CategoryGPIO, "General purpose"},
}

// Catalog is the read-only set of pins devices may be bound to.
type Catalog struct {
	pins     map[int]Pin
	reserved map[int]bool
}

// NewCatalog builds the header catalog, excluding reserved BCM numbers.
func NewCatalog(reserved []int) *Catalog {
	c := &Catalog{
		pins:     make(map[int]Pin, len(headerPins)),
		reserved: make(map[int]bool, len(reserved)),
	}
	for _, p := range headerPins {
		c.pins[p.Number] = p
	}
	for _, n := range reserved {
		c.reserved[n] = true
	}
	return c
}

// Lookup returns the catalog entry for a BCM number.
func (c *Catalog) Lookup(number int) (Pin, bool) {
	p, ok := c.pins[number]
	return p, ok
}

// Check reports whether number may carry a device.
func (c *Catalog) Check(number int) error {
	if _, ok := c.pins[number]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPin, number)
	}
	if c.reserved[number] {
		return fmt.Errorf("%w: %d", ErrPinReserved, number)
	}
	return nil
}

// All returns every non-reserved pin ordered by BCM number.
func (c *Catalog) All() []Pin {
	return c.filter(func(Pin) bool { return true })
}

// Usable returns the non-reserved pins not present in inUse, ordered by BCM number.
func (c *Catalog) Usable(inUse map[int]bool) []Pin {
	return c.filter(func(p Pin) bool { return !inUse[p.Number] })
}

func (c *Catalog) filter(keep func(Pin) bool) []Pin {
	out := make([]Pin, 0, len(c.pins))
	for n, p := range c.pins {
		if c.reserved[n] || !keep(p) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
