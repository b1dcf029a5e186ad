package scan

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"dltsctl/dlts"
	"dltsctl/protocol"
)

// Default interval between two image assembly passes.
const defaultImageRebuildInterval = 5 * time.Second

// Variant fixes everything scan-type-specific: the wire commands to
// start and abort the sweep, the fixed point length to read per
// position and the channel images derived from the points.
type Variant interface {
	// Name describes the scan type.
	Name() string

	// OnScanStart sends the scan start command, and whatever
	// parameters the scan type needs before it.
	OnScanStart(conn *dlts.Connection, s *Scan) error

	// OnScanAbort performs the abort handshake. Stale point data may
	// still be in flight when it runs.
	OnScanAbort(conn *dlts.Connection) error

	// OnReceiveDataPoint blocks until the next point payload has
	// been read off the device.
	OnReceiveDataPoint(conn *dlts.Connection) (DataPoint, error)

	// CreateImages assembles the channel images from a snapshot of
	// the collected points.
	CreateImages(points []DataPoint, s *Scan) []*Image
}

// intensitySweeper is implemented by variants which sweep a range of
// laser intensities per position.
type intensitySweeper interface {
	SetLaserMinIntensity(conn *dlts.Connection, value int) error
	SetLaserMaxIntensity(conn *dlts.Connection, value int) error
	SetLaserStepIntensity(conn *dlts.Connection, value int) error
}

// autoFocuser is implemented by variants which support the firmware's
// autofocus action.
type autoFocuser interface {
	AutoFocus(conn *dlts.Connection) error
}

// Options carries the optional scan parameters. Nil pointer fields
// leave the device's current value in effect.
type Options struct {
	// PositioningTime is how long the scan waits for the device to
	// reach the sweep's starting corner.
	PositioningTime time.Duration

	XTilt          *int
	ZPosition      *int
	LaserIntensity *int

	// AutoFocus triggers the firmware autofocus before the sweep on
	// variants that support it.
	AutoFocus bool

	LaserMinIntensity  *int
	LaserMaxIntensity  *int
	LaserStepIntensity *int

	// ImageRebuildInterval overrides the pause between image
	// assembly passes. Zero selects the default of 5 seconds.
	ImageRebuildInterval time.Duration
}

// Scan is one sweep run: a single-use state machine which drives the
// device on an acquisition goroutine and assembles images on a second
// goroutine until the sweep completes, aborts or fails.
type Scan struct {
	config  AreaConfig
	variant Variant
	opts    Options

	imageInterval time.Duration

	conn *dlts.Connection

	pointsMu sync.Mutex
	points   []DataPoint

	imagesMu sync.Mutex
	images   []*Image

	stateMu        sync.Mutex
	startTime      time.Time
	finishTime     time.Time
	xTilt          int
	zPosition      int
	laserIntensity int

	started        atomic.Bool
	running        atomic.Bool
	finished       atomic.Bool
	abortRequested atomic.Bool
	scanning       atomic.Bool

	imagesDone sync.WaitGroup
}

// New creates a scan of the given variant over the given area.
func New(config AreaConfig, variant Variant, opts Options) *Scan {
	interval := opts.ImageRebuildInterval
	if interval <= 0 {
		interval = defaultImageRebuildInterval
	}
	return &Scan{
		config:        config,
		variant:       variant,
		opts:          opts,
		imageInterval: interval,
	}
}

// Name describes the scan type.
func (s *Scan) Name() string { return s.variant.Name() }

// Config returns the scan's area configuration.
func (s *Scan) Config() AreaConfig { return s.config }

// Start begins the scan on the given connection and returns
// immediately. Starting a running or finished scan has no effect.
func (s *Scan) Start(conn *dlts.Connection) {
	if s.IsRunning() || s.IsFinished() {
		return
	}
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.conn = conn
	s.running.Store(true)
	go s.acquisitionLoop()
}

// Abort requests a cooperative abort. It only takes effect while the
// scan is genuinely acquiring points; callers poll IsFinished and
// IsAborted for the outcome. A blocking device read in flight delays
// the abort until that read resolves or times out.
func (s *Scan) Abort() {
	if s.IsRunning() && s.scanning.Load() {
		s.abortRequested.Store(true)
	}
}

// IsRunning reports whether the scan is currently running.
func (s *Scan) IsRunning() bool { return s.running.Load() }

// IsFinished reports whether the scan has finished, no matter how.
func (s *Scan) IsFinished() bool { return s.finished.Load() }

// IsAborted reports whether the scan finished by aborting.
func (s *Scan) IsAborted() bool {
	return s.IsFinished() && s.abortRequested.Load()
}

// IsCompleted reports whether the scan finished with all points
// acquired.
func (s *Scan) IsCompleted() bool {
	return s.IsFinished() && s.PointsReceived() >= s.Capacity()
}

// StartTime returns the time the scan was started.
func (s *Scan) StartTime() time.Time {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.startTime
}

// Duration returns the elapsed scan time so far, or the total scan
// time once finished.
func (s *Scan) Duration() time.Duration {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.durationLocked()
}

func (s *Scan) durationLocked() time.Duration {
	switch {
	case s.IsRunning():
		return time.Since(s.startTime)
	case s.IsFinished():
		return s.finishTime.Sub(s.startTime)
	default:
		return 0
	}
}

// XTilt returns the x tilt in effect during the scan.
func (s *Scan) XTilt() int {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.xTilt
}

// ZPosition returns the z position in effect during the scan.
func (s *Scan) ZPosition() int {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.zPosition
}

// LaserIntensity returns the laser intensity in effect during the
// scan.
func (s *Scan) LaserIntensity() int {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.laserIntensity
}

// DataPoints returns a snapshot of the points collected so far.
func (s *Scan) DataPoints() []DataPoint {
	s.pointsMu.Lock()
	defer s.pointsMu.Unlock()
	points := make([]DataPoint, len(s.points))
	copy(points, s.points)
	return points
}

// PointsReceived returns the number of points collected so far.
func (s *Scan) PointsReceived() int {
	s.pointsMu.Lock()
	defer s.pointsMu.Unlock()
	return len(s.points)
}

// Capacity returns the total number of points the sweep can yield.
func (s *Scan) Capacity() int {
	return s.config.PositionsCount()
}

// Images returns the most recently assembled channel images. While the
// scan runs this is a partial result.
func (s *Scan) Images() []*Image {
	s.imagesMu.Lock()
	defer s.imagesMu.Unlock()
	images := make([]*Image, len(s.images))
	copy(images, s.images)
	return images
}

// Progress returns the acquisition progress, 0.0 to 1.0.
func (s *Scan) Progress() float64 {
	capacity := s.Capacity()
	if capacity <= 0 {
		return 0.0
	}
	return float64(s.PointsReceived()) / float64(capacity)
}

// imageMeta snapshots the scan attributes shared by the images of one
// assembly pass.
func (s *Scan) imageMeta() imageMeta {
	positionX, positionY := s.config.MinPosition()
	sizeX, sizeY := s.config.ImageSize()
	resolutionX, resolutionY := s.config.Resolution()

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return imageMeta{
		positionX:           positionX,
		positionY:           positionY,
		sizeX:               sizeX,
		sizeY:               sizeY,
		resolutionX:         resolutionX,
		resolutionY:         resolutionY,
		laserIntensity:      s.laserIntensity,
		zPosition:           s.zPosition,
		xTilt:               s.xTilt,
		scanDate:            s.startTime,
		scanDuration:        s.durationLocked(),
		intensityMultiplier: s.config.IntensityMultiplier(),
	}
}

// acquisitionLoop drives the device for the scan's whole lifetime: it
// holds the connection exclusively, prepares the sweep, collects points
// and restores the cached device parameters at the end. Any failure
// aborts the scan quietly into a finished-but-incomplete state; callers
// inspect IsCompleted.
func (s *Scan) acquisitionLoop() {
	defer func() {
		s.stateMu.Lock()
		s.finishTime = time.Now()
		s.stateMu.Unlock()
		s.finished.Store(true)
		s.running.Store(false)
	}()

	s.stateMu.Lock()
	s.startTime = time.Now()
	s.stateMu.Unlock()

	conn := s.conn
	conn.Acquire(true, -1)

	set := func(command []byte, buildErr error) error {
		if buildErr != nil {
			return buildErr
		}
		return conn.CommandSet(command)
	}

	var cachedXTilt, cachedZPosition, cachedLaserIntensity *int

	err := func() error {
		xTilt, err := conn.CommandGetUInt16(protocol.GetXTilt())
		if err != nil {
			return err
		}
		cachedXTilt = &xTilt
		zPosition, err := conn.CommandGetUInt16(protocol.GetZPosition())
		if err != nil {
			return err
		}
		cachedZPosition = &zPosition
		laserIntensity, err := conn.CommandGetUInt16(protocol.GetLaserIntensity())
		if err != nil {
			return err
		}
		cachedLaserIntensity = &laserIntensity

		effXTilt := pick(s.opts.XTilt, xTilt)
		effZPosition := pick(s.opts.ZPosition, zPosition)
		effLaserIntensity := pick(s.opts.LaserIntensity, laserIntensity)

		s.stateMu.Lock()
		s.xTilt = effXTilt
		s.zPosition = effZPosition
		s.laserIntensity = effLaserIntensity
		s.stateMu.Unlock()

		if err := set(protocol.SetXTilt(effXTilt)); err != nil {
			return err
		}
		if err := set(protocol.SetZPosition(effZPosition)); err != nil {
			return err
		}
		if err := set(protocol.SetLaserIntensity(effLaserIntensity)); err != nil {
			return err
		}

		if err := s.config.ConfigureDevice(conn); err != nil {
			return err
		}

		xLow, yLow := s.config.MinPosition()
		if err := set(protocol.SetXPosition(xLow)); err != nil {
			return err
		}
		if err := set(protocol.SetYPosition(yLow)); err != nil {
			return err
		}

		time.Sleep(s.opts.PositioningTime)

		if sweeper, ok := s.variant.(intensitySweeper); ok {
			if s.opts.LaserMinIntensity != nil {
				if err := sweeper.SetLaserMinIntensity(conn, *s.opts.LaserMinIntensity); err != nil {
					return err
				}
			}
			if s.opts.LaserMaxIntensity != nil {
				if err := sweeper.SetLaserMaxIntensity(conn, *s.opts.LaserMaxIntensity); err != nil {
					return err
				}
			}
			if s.opts.LaserStepIntensity != nil {
				if err := sweeper.SetLaserStepIntensity(conn, *s.opts.LaserStepIntensity); err != nil {
					return err
				}
			}
		}

		if s.opts.AutoFocus {
			if focuser, ok := s.variant.(autoFocuser); ok {
				if err := focuser.AutoFocus(conn); err != nil {
					return err
				}
				// the firmware trails unused bytes after the
				// autofocus response; flush them
				extra, err := conn.ReadAll()
				if err != nil {
					return err
				}
				if len(extra) > 0 {
					log.Debug().
						Str("scan", s.variant.Name()).
						Hex("extra", extra).
						Msg("flushed residual autofocus bytes")
				}
			}
		}

		if err := s.variant.OnScanStart(conn, s); err != nil {
			return err
		}

		s.scanning.Store(true)

		s.imagesDone.Add(1)
		go s.imageAssemblyLoop()

		for s.scanning.Load() {
			point, err := s.variant.OnReceiveDataPoint(conn)
			if err != nil {
				return err
			}

			s.pointsMu.Lock()
			s.points = append(s.points, point)
			count := len(s.points)
			s.pointsMu.Unlock()

			if s.abortRequested.Load() {
				if err := s.variant.OnScanAbort(conn); err != nil {
					return err
				}
			}

			if s.abortRequested.Load() || count >= s.Capacity() {
				s.scanning.Store(false)
			}
		}
		return nil
	}()

	if err != nil {
		log.Error().Err(err).Str("scan", s.variant.Name()).Msg("scan run failed")
	}

	// make sure the image assembly loop terminates
	s.scanning.Store(false)

	s.restore(conn, protocol.SetXTilt, cachedXTilt, "x tilt")
	s.restore(conn, protocol.SetZPosition, cachedZPosition, "z position")
	s.restore(conn, protocol.SetLaserIntensity, cachedLaserIntensity, "laser intensity")

	conn.Release()

	// wait until the most recent images have been assembled
	s.imagesDone.Wait()
}

// restore writes a cached device parameter back, best effort. Failures
// are logged, never escalated.
func (s *Scan) restore(conn *dlts.Connection, build func(int) ([]byte, error), value *int, name string) {
	if value == nil {
		return
	}
	command, err := build(*value)
	if err == nil {
		err = conn.CommandSet(command)
	}
	if err != nil {
		log.Warn().Err(err).
			Str("scan", s.variant.Name()).
			Str("parameter", name).
			Msg("could not restore scan parameter")
	}
}

// imageAssemblyLoop periodically rebuilds the channel images from the
// accumulated points. It always runs one more pass after acquisition
// stops so the last points are not lost. Failures end the loop without
// touching the acquisition path.
func (s *Scan) imageAssemblyLoop() {
	defer s.imagesDone.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("scan", s.variant.Name()).
				Interface("panic", r).
				Msg("image assembly failed")
		}
	}()

	dirty := true
	for dirty {
		dirty = s.scanning.Load()

		// a snapshot keeps the points lock and the images lock
		// disjoint; never hold both
		images := s.variant.CreateImages(s.DataPoints(), s)

		s.imagesMu.Lock()
		s.images = images
		s.imagesMu.Unlock()

		time.Sleep(s.imageInterval)
	}
}

func pick(override *int, current int) int {
	if override != nil {
		return *override
	}
	return current
}
