package location

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/tarm/serial"
)

const (
	knotsToKmh = 1.852
	// maxSentences bounds how much receiver output one GetLocation reads.
	maxSentences = 64
)

// ErrNoFix is returned when the receiver output contains no valid position.
var ErrNoFix = errors.New("no valid GPS fix found")

// DeviceSensorProvider reads NMEA sentences from a GPS receiver on a serial port.
type DeviceSensorProvider struct {
	port     string // Serial port to which the GPS device is connected
	baudRate int    // Baud rate for the serial communication
	open     func() (io.ReadCloser, error)
}

// NewDeviceSensorProvider creates a new instance of DeviceSensorProvider with the specified port and baud rate.
func NewDeviceSensorProvider(port string, baudRate int) *DeviceSensorProvider {
	d := &DeviceSensorProvider{
		port:     port,
		baudRate: baudRate,
	}
	d.open = func() (io.ReadCloser, error) {
		return serial.OpenPort(&serial.Config{Name: d.port, Baud: d.baudRate, ReadTimeout: time.Second})
	}
	return d
}

// GetLocation opens the port, reads until a GGA fix (and an RMC sentence for
// speed, if one follows) is seen, and closes the port again.
func (d *DeviceSensorProvider) GetLocation(ctx context.Context) (Location, error) {
	port, err := d.open()
	if err != nil {
		return Location{}, fmt.Errorf("failed to open %s: %w", d.port, err)
	}
	defer port.Close()

	return readFix(ctx, port)
}

func (d *DeviceSensorProvider) Close() error { return nil }

// readFix scans NMEA output. GGA supplies the position and HDOP, RMC the
// speed over ground. It returns as soon as both are known, or with the GGA
// fix alone when the input ends or the sentence budget runs out.
func readFix(ctx context.Context, r io.Reader) (Location, error) {
	var (
		location Location
		haveFix  bool
		haveRMC  bool
	)

	scanner := bufio.NewScanner(r)
	for read := 0; read < maxSentences && scanner.Scan(); read++ {
		if err := ctx.Err(); err != nil {
			return Location{}, err
		}

		sentence, err := nmea.Parse(scanner.Text())
		if err != nil {
			continue // partial line or unsupported sentence
		}

		switch s := sentence.(type) {
		case nmea.GGA:
			if s.FixQuality == nmea.Invalid {
				continue
			}
			location.Latitude = s.Latitude
			location.Longitude = s.Longitude
			location.Accuracy = s.HDOP // HDOP as a proxy for accuracy
			haveFix = true
		case nmea.RMC:
			if s.Validity != nmea.ValidRMC {
				continue
			}
			location.SpeedKmh = s.Speed * knotsToKmh
			haveRMC = true
		}

		if haveFix && haveRMC {
			return location, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return Location{}, err
	}
	if !haveFix {
		return Location{}, ErrNoFix
	}
	return location, nil
}
