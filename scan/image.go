package scan

import (
	"time"
)

// DataPoint is one fixed-length raw device reading at one sweep
// position. Which byte ranges map to which physical quantity is fixed
// per scan variant. Points are created once when received and never
// mutated.
type DataPoint []byte

// tailUint reads the big-endian unsigned value in the byte range
// [len-from, len-to) counted from the end of the point. Field layouts
// are anchored to the tail so a variant can grow its point without
// shifting the channel order.
func (p DataPoint) tailUint(from, to int) int {
	raw := p[len(p)-from : len(p)-to]
	var value uint64
	for _, b := range raw {
		value = value<<8 | uint64(b)
	}
	return int(value)
}

// Image is a sample array for one physical channel, assembled from the
// points collected so far. The data is laid out row-major over the
// sweep: x advances within a row, y selects the row. Images are
// rebuilt wholesale on each assembly pass and never mutated afterwards.
type Image struct {
	name string

	positionX, positionY     int
	sizeX, sizeY             int
	resolutionX, resolutionY int

	laserIntensity int
	zPosition      int
	xTilt          int

	scanDate     time.Time
	scanDuration time.Duration

	intensityMultiplier int

	data        []int
	pointsCount int
}

// newImage builds the channel image from the given point snapshot by
// converting each point in arrival order into the pre-sized,
// zero-filled array. Arrival order must equal raster order; the device
// guarantees that, the engine does not enforce it.
func newImage(name string, points []DataPoint, meta imageMeta, convert func(DataPoint) int) *Image {
	img := &Image{
		name:                name,
		positionX:           meta.positionX,
		positionY:           meta.positionY,
		sizeX:               meta.sizeX,
		sizeY:               meta.sizeY,
		resolutionX:         meta.resolutionX,
		resolutionY:         meta.resolutionY,
		laserIntensity:      meta.laserIntensity,
		zPosition:           meta.zPosition,
		xTilt:               meta.xTilt,
		scanDate:            meta.scanDate,
		scanDuration:        meta.scanDuration,
		intensityMultiplier: meta.intensityMultiplier,
		data:                make([]int, meta.resolutionX*meta.resolutionY),
		pointsCount:         len(points),
	}

	capacity := len(img.data)
	for i, point := range points {
		if i >= capacity {
			break
		}
		img.data[i] = convert(point)
	}
	return img
}

// imageMeta carries the scan attributes shared by all images of one
// assembly pass.
type imageMeta struct {
	positionX, positionY     int
	sizeX, sizeY             int
	resolutionX, resolutionY int
	laserIntensity           int
	zPosition                int
	xTilt                    int
	scanDate                 time.Time
	scanDuration             time.Duration
	intensityMultiplier      int
}

// Name describes the physical channel of the image.
func (img *Image) Name() string { return img.name }

// Position returns the sweep's starting corner.
func (img *Image) Position() (x, y int) { return img.positionX, img.positionY }

// Size returns the real-world space the image covers.
func (img *Image) Size() (x, y int) { return img.sizeX, img.sizeY }

// Resolution returns the number of columns and rows.
func (img *Image) Resolution() (x, y int) { return img.resolutionX, img.resolutionY }

func (img *Image) LaserIntensity() int { return img.laserIntensity }
func (img *Image) ZPosition() int      { return img.zPosition }
func (img *Image) XTilt() int          { return img.xTilt }

func (img *Image) ScanDate() time.Time         { return img.scanDate }
func (img *Image) ScanDuration() time.Duration { return img.scanDuration }
func (img *Image) IntensityMultiplier() int    { return img.intensityMultiplier }

// Data returns the backing row-major sample array. Capacity-unfilled
// cells hold zero. The slice is shared; callers must not modify it.
func (img *Image) Data() []int { return img.data }

// At returns the sample at the given row and column.
func (img *Image) At(row, col int) int {
	return img.data[row*img.resolutionX+col]
}

// PointsCount returns the number of valid points in the image.
func (img *Image) PointsCount() int { return img.pointsCount }

// PointsCapacity returns the image's point capacity.
func (img *Image) PointsCapacity() int { return len(img.data) }

// Completion returns the filled fraction of the image, 0.0 to 1.0.
func (img *Image) Completion() float64 {
	if len(img.data) == 0 {
		return 0.0
	}
	return float64(img.pointsCount) / float64(len(img.data))
}

// IsCompleted reports whether the image's capacity is completely
// filled.
func (img *Image) IsCompleted() bool {
	return img.pointsCount == len(img.data)
}

// IsEmpty reports whether the image holds no points at all.
func (img *Image) IsEmpty() bool {
	return img.pointsCount == 0
}
