package scan

import (
	"testing"
	"time"

	"dltsctl/dlts"
)

func testOptions() Options {
	return Options{ImageRebuildInterval: time.Millisecond}
}

func startScan(t *testing.T, firmware *simFirmware, s *Scan) {
	t.Helper()
	conn := dlts.NewConnection(firmware)
	s.Start(conn)
	waitFor(t, "scan to finish", s.IsFinished)
}

func TestReflectionScanCompletes(t *testing.T) {
	firmware := newSimFirmware(func(i int) []byte {
		return []byte{byte(i)}
	})

	firmware.setPointLimit(9)

	s := New(NewAreaConfig(0, 2, 0, 2, 1, 1, 0, 0), NewReflection(), testOptions())
	if got := s.Capacity(); got != 9 {
		t.Fatalf("capacity = %d, want 9", got)
	}

	startScan(t, firmware, s)

	if !s.IsCompleted() {
		t.Fatal("scan not completed")
	}
	if s.IsAborted() {
		t.Fatal("scan reported aborted")
	}
	if got := s.PointsReceived(); got != 9 {
		t.Fatalf("points received = %d, want 9", got)
	}
	if got := s.Progress(); got != 1.0 {
		t.Fatalf("progress = %v, want 1.0", got)
	}

	images := s.Images()
	if len(images) != 1 {
		t.Fatalf("images = %d, want 1", len(images))
	}
	img := images[0]
	if got := img.Name(); got != "Laser Scanning Microscope" {
		t.Fatalf("image name = %q", got)
	}
	if !img.IsCompleted() {
		t.Fatal("image not completed")
	}
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			want := row*3 + col
			if got := img.At(row, col); got != want {
				t.Fatalf("At(%d, %d) = %d, want %d", row, col, got, want)
			}
		}
	}
}

func TestScanPushesAreaParameters(t *testing.T) {
	firmware := newSimFirmware(func(i int) []byte {
		return []byte{byte(i)}
	})

	s := New(NewAreaConfig(10, 50, 20, 60, 10, 20, 3, 7), NewReflection(), testOptions())
	startScan(t, firmware, s)

	for _, check := range []struct {
		subject string
		want    int
	}{
		{"xl", 10}, {"xh", 50}, {"yl", 20}, {"yh", 60},
		{"sx", 10}, {"sy", 20}, {"dp", 3}, {"dl", 7},
	} {
		got, ok := firmware.register(check.subject)
		if !ok {
			t.Fatalf("register %q never set", check.subject)
		}
		if got != check.want {
			t.Fatalf("register %q = %d, want %d", check.subject, got, check.want)
		}
	}

	// the sweep starts from the low corner
	if got, _ := firmware.register("px"); got != 10 {
		t.Fatalf("x position = %d, want 10", got)
	}
	if got, _ := firmware.register("py"); got != 20 {
		t.Fatalf("y position = %d, want 20", got)
	}
}

func TestScanRestoresCachedParameters(t *testing.T) {
	firmware := newSimFirmware(func(i int) []byte {
		return []byte{byte(i)}
	})
	firmware.setRegister("pt", 11)
	firmware.setRegister("pz", 22)
	firmware.setRegister("li", 33)

	xTilt, laser := 500, 900
	opts := testOptions()
	opts.XTilt = &xTilt
	opts.LaserIntensity = &laser

	s := New(NewPointAreaConfig(5, 5), NewReflection(), opts)
	startScan(t, firmware, s)

	// overrides were in effect during the scan
	if got := s.XTilt(); got != 500 {
		t.Fatalf("scan x tilt = %d, want 500", got)
	}
	if got := s.ZPosition(); got != 22 {
		t.Fatalf("scan z position = %d, want 22", got)
	}
	if got := s.LaserIntensity(); got != 900 {
		t.Fatalf("scan laser intensity = %d, want 900", got)
	}

	// the cached device values are restored afterwards
	for _, check := range []struct {
		subject string
		want    int
	}{
		{"pt", 11}, {"pz", 22}, {"li", 33},
	} {
		if got, _ := firmware.register(check.subject); got != check.want {
			t.Fatalf("register %q = %d after scan, want %d", check.subject, got, check.want)
		}
	}
}

func TestScanAbort(t *testing.T) {
	firmware := newSimFirmware(func(i int) []byte {
		return []byte{byte(i)}
	})
	firmware.stopResidue = []byte{0xde, 0xad}
	firmware.pointDelay = time.Millisecond

	s := New(NewAreaConfig(0, 99, 0, 99, 1, 1, 0, 0), NewReflection(), testOptions())
	conn := dlts.NewConnection(firmware)
	s.Start(conn)

	waitFor(t, "points to arrive", func() bool { return s.PointsReceived() >= 1 })
	s.Abort()
	waitFor(t, "scan to finish", s.IsFinished)

	if !s.IsAborted() {
		t.Fatal("scan not aborted")
	}
	if s.IsCompleted() {
		t.Fatal("aborted scan reported completed")
	}
	if s.IsRunning() {
		t.Fatal("finished scan reported running")
	}

	var sawStop bool
	for _, command := range firmware.receivedCommands() {
		if command == "ass" {
			sawStop = true
		}
	}
	if !sawStop {
		t.Fatal("stop command never sent")
	}
}

func TestScanDeviceFailureEndsQuietly(t *testing.T) {
	firmware := newSimFirmware(func(i int) []byte {
		return []byte{byte(i)}
	})
	firmware.setPointLimit(3)

	s := New(NewAreaConfig(0, 2, 0, 2, 1, 1, 0, 0), NewReflection(), testOptions())
	startScan(t, firmware, s)

	if s.IsCompleted() {
		t.Fatal("starved scan reported completed")
	}
	if s.IsAborted() {
		t.Fatal("starved scan reported aborted")
	}
	if got := s.PointsReceived(); got != 3 {
		t.Fatalf("points received = %d, want 3", got)
	}
	if got, want := s.Progress(), 3.0/9.0; got != want {
		t.Fatalf("progress = %v, want %v", got, want)
	}

	// the partial points still end up in the final images
	images := s.Images()
	if len(images) != 1 {
		t.Fatalf("images = %d, want 1", len(images))
	}
	if images[0].PointsCount() != 3 {
		t.Fatalf("image points = %d, want 3", images[0].PointsCount())
	}
}

func TestScanStartIsSingleUse(t *testing.T) {
	firmware := newSimFirmware(func(i int) []byte {
		return []byte{byte(i)}
	})

	s := New(NewPointAreaConfig(1, 1), NewReflection(), testOptions())
	startScan(t, firmware, s)
	before := len(firmware.receivedCommands())

	s.Start(dlts.NewConnection(firmware))
	time.Sleep(10 * time.Millisecond)

	if got := len(firmware.receivedCommands()); got != before {
		t.Fatalf("restart sent %d extra commands", got-before)
	}
	if s.IsRunning() {
		t.Fatal("finished scan reported running after restart")
	}
}

func TestMultiIntensityScanRun(t *testing.T) {
	firmware := newSimFirmware(func(i int) []byte {
		// reflection, laser, current, voltage channels per point
		return []byte{
			0, byte(10 + i),
			0, byte(20 + i),
			0, byte(30 + i),
			0, byte(40 + i),
		}
	})
	firmware.focusResidue = []byte{0x7f}

	low, high, step := 100, 400, 100
	opts := testOptions()
	opts.AutoFocus = true
	opts.LaserMinIntensity = &low
	opts.LaserMaxIntensity = &high
	opts.LaserStepIntensity = &step

	config := NewAreaConfig(0, 1, 0, 1, 1, 1, 0, 0).WithIntensityMultiplier(4)
	s := New(config, NewMultiIntensity(2), opts)
	startScan(t, firmware, s)

	if !s.IsCompleted() {
		t.Fatal("scan not completed")
	}

	for _, check := range []struct {
		subject string
		want    int
	}{
		{"le", 100}, {"lg", 400}, {"si", 100}, {"dm", 2},
	} {
		got, ok := firmware.register(check.subject)
		if !ok {
			t.Fatalf("register %q never set", check.subject)
		}
		if got != check.want {
			t.Fatalf("register %q = %d, want %d", check.subject, got, check.want)
		}
	}

	var sawFocus, sawStart bool
	for _, command := range firmware.receivedCommands() {
		switch command {
		case "asJ":
			sawFocus = true
		case "asn":
			sawStart = true
		}
	}
	if !sawFocus {
		t.Fatal("autofocus command never sent")
	}
	if !sawStart {
		t.Fatal("multi intensity start command never sent")
	}

	images := s.Images()
	if len(images) != 4 {
		t.Fatalf("images = %d, want 4", len(images))
	}
	wantNames := []string{
		"Latch-Up Current Image",
		"Laser Intensity",
		"Reflection Scan Image",
		"Voltage Scan Image",
	}
	wantBase := []int{30, 20, 10, 40}
	for i, img := range images {
		if img.Name() != wantNames[i] {
			t.Fatalf("image %d name = %q, want %q", i, img.Name(), wantNames[i])
		}
		if img.IntensityMultiplier() != 4 {
			t.Fatalf("image %d intensity multiplier = %d, want 4", i, img.IntensityMultiplier())
		}
		for point := 0; point < 4; point++ {
			row, col := point/2, point%2
			if got, want := img.At(row, col), wantBase[i]+point; got != want {
				t.Fatalf("image %q At(%d, %d) = %d, want %d", img.Name(), row, col, got, want)
			}
		}
	}
}

func TestAutofocusSkippedWithoutSupport(t *testing.T) {
	firmware := newSimFirmware(func(i int) []byte {
		return []byte{byte(i)}
	})

	opts := testOptions()
	opts.AutoFocus = true

	s := New(NewPointAreaConfig(3, 3), NewReflection(), opts)
	startScan(t, firmware, s)

	for _, command := range firmware.receivedCommands() {
		if command == "asJ" {
			t.Fatal("autofocus sent for a variant without support")
		}
	}
	if !s.IsCompleted() {
		t.Fatal("scan not completed")
	}
}

func TestScanDuration(t *testing.T) {
	firmware := newSimFirmware(func(i int) []byte {
		return []byte{byte(i)}
	})

	s := New(NewPointAreaConfig(0, 0), NewReflection(), testOptions())
	if got := s.Duration(); got != 0 {
		t.Fatalf("duration before start = %v, want 0", got)
	}

	startScan(t, firmware, s)

	duration := s.Duration()
	if duration <= 0 {
		t.Fatalf("duration after finish = %v", duration)
	}
	time.Sleep(5 * time.Millisecond)
	if got := s.Duration(); got != duration {
		t.Fatalf("finished duration changed from %v to %v", duration, got)
	}
	if s.StartTime().IsZero() {
		t.Fatal("start time not recorded")
	}
}
