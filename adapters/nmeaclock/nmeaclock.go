// Package nmeaclock reads $GPRMC/$GPZDA sentences off a serial GPS
// receiver the same way src/dwgpsnmea.go does, and turns the decoded
// UTC time into an (rx_time, rx_rate) reference pair for receivers
// that expose NMEA but no PPS line.
package nmeaclock

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/term"

	"github.com/doismellburning/digitalll/digitalll"
)

const nmeaMaxLen = 160

// Source reads NMEA sentences from a serial port and emits an rx_time
// tag for every sentence with a valid UTC time.
type Source struct {
	port       *term.Term
	scanner    *bufio.Scanner
	sampleRate float64
	srcID      string
}

// Open opens devicename at speed baud and prepares to scan NMEA lines.
// sampleRate is the nominal rate reported in the companion rx_rate tag.
func Open(devicename string, speed int, sampleRate float64) (*Source, error) {
	port, err := term.Open(devicename, term.Speed(speed))
	if err != nil {
		return nil, fmt.Errorf("nmeaclock: open %s: %w", devicename, err)
	}
	sc := bufio.NewScanner(port)
	sc.Buffer(make([]byte, nmeaMaxLen), nmeaMaxLen)
	return &Source{port: port, scanner: sc, sampleRate: sampleRate, srcID: "nmeaclock"}, nil
}

// Next blocks for the next NMEA sentence carrying a time-of-day and
// returns the rx_time/rx_rate tag pair for it. io.EOF-style scanner
// exhaustion surfaces as an error.
func (s *Source) Next() ([]digitalll.StreamTag, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		ts, ok := parseSentence(line)
		if !ok {
			continue
		}
		return []digitalll.StreamTag{
			{Key: digitalll.TagRxTime, Value: ts, SrcID: s.srcID},
			{Key: digitalll.TagRxRate, Value: s.sampleRate, SrcID: s.srcID},
		}, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("nmeaclock: read: %w", err)
	}
	return nil, fmt.Errorf("nmeaclock: serial port closed")
}

// Close closes the underlying serial port.
func (s *Source) Close() error {
	return s.port.Close()
}

func parseSentence(sentence string) (digitalll.Timestamp, bool) {
	body, checksumStr, found := strings.Cut(sentence, "*")
	if !found || len(body) < 1 {
		return digitalll.Timestamp{}, false
	}
	var calc int64
	for _, r := range body[1:] {
		calc ^= int64(r)
	}
	checksum, err := strconv.ParseInt(strings.TrimSpace(checksumStr), 16, 0)
	if err != nil || calc != checksum {
		return digitalll.Timestamp{}, false
	}

	ptype, rest, _ := strings.Cut(body, ",")
	switch {
	case strings.HasSuffix(ptype, "RMC"):
		return parseTimeField(rest, 0)
	case strings.HasSuffix(ptype, "ZDA"):
		return parseTimeField(rest, 0)
	default:
		return digitalll.Timestamp{}, false
	}
}

// parseTimeField pulls the leading hhmmss[.sss] field common to both
// $GPRMC and $GPZDA and turns it into a same-day UTC Timestamp.
func parseTimeField(rest string, _ int) (digitalll.Timestamp, bool) {
	timeField, _, _ := strings.Cut(rest, ",")
	if len(timeField) < 6 {
		return digitalll.Timestamp{}, false
	}
	hh, errH := strconv.Atoi(timeField[0:2])
	mm, errM := strconv.Atoi(timeField[2:4])
	secField := timeField[4:]
	ss, errS := strconv.ParseFloat(secField, 64)
	if errH != nil || errM != nil || errS != nil {
		return digitalll.Timestamp{}, false
	}

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	secondsSinceMidnight := float64(hh*3600+mm*60) + ss
	intS, fracS := int64(secondsSinceMidnight), secondsSinceMidnight-float64(int64(secondsSinceMidnight))
	return digitalll.NewTimestamp(midnight.Unix()+intS, fracS), true
}
