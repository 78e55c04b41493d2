package video

import (
	"fmt"
	"io"

	"gocv.io/x/gocv"
)

// FileOpener opens video files from a directory with OpenCV.
type FileOpener struct {
	Dir string
}

// NewFileOpener returns an Opener rooted at dir.
func NewFileOpener(dir string) *FileOpener {
	return &FileOpener{Dir: dir}
}

func (o *FileOpener) Open(name string) (Capture, error) {
	path, err := ResolvePath(o.Dir, name)
	if err != nil {
		return nil, err
	}

	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, name, err)
	}

	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w: %s is not open", ErrOpen, name)
	}

	width := int(cap.Get(gocv.VideoCaptureFrameWidth))
	height := int(cap.Get(gocv.VideoCaptureFrameHeight))
	if width <= 0 || height <= 0 {
		cap.Close()
		return nil, fmt.Errorf("%w: %s reports size %dx%d", ErrOpen, name, width, height)
	}

	return &fileCapture{
		cap:    cap,
		img:    gocv.NewMat(),
		bgr:    gocv.NewMat(),
		width:  width,
		height: height,
	}, nil
}

type fileCapture struct {
	cap    *gocv.VideoCapture
	img    gocv.Mat
	bgr    gocv.Mat
	width  int
	height int
}

func (c *fileCapture) Size() (int, int) {
	return c.width, c.height
}

func (c *fileCapture) Read() (Image, error) {
	if ok := c.cap.Read(&c.img); !ok || c.img.Empty() {
		return Image{}, io.EOF
	}

	src := c.img
	switch c.img.Channels() {
	case 3:
	case 4:
		if err := gocv.CvtColor(c.img, &c.bgr, gocv.ColorBGRAToBGR); err != nil {
			return Image{}, fmt.Errorf("error converting BGRA frame: %w", err)
		}
		src = c.bgr
	case 1:
		if err := gocv.CvtColor(c.img, &c.bgr, gocv.ColorGrayToBGR); err != nil {
			return Image{}, fmt.Errorf("error converting gray frame: %w", err)
		}
		src = c.bgr
	default:
		return Image{}, fmt.Errorf("unsupported channel count %d", c.img.Channels())
	}

	// ToBytes copies out of the decoder's buffer, so the Image stays valid
	// after the next Read.
	return Image{
		Width:  src.Cols(),
		Height: src.Rows(),
		Data:   src.ToBytes(),
	}, nil
}

func (c *fileCapture) Close() error {
	c.img.Close()
	c.bgr.Close()
	if err := c.cap.Close(); err != nil {
		return fmt.Errorf("error closing capture: %v", err)
	}
	return nil
}
