package display

import (
	"context"
	"errors"
	"log"
)

// LogSurface renders nothing and logs every frame. Used when no screen is
// attached.
type LogSurface struct{}

func (LogSurface) Present(_ context.Context, f Frame) error {
	switch f.Kind {
	case KindText:
		log.Printf("[screen] seq=%d text %q", f.Seq, f.Text)
	case KindVideo:
		log.Printf("[screen] seq=%d video %q playback=%s visible=%v", f.Seq, f.Source, f.PlaybackID, f.Visible)
	default:
		log.Printf("[screen] seq=%d %s %q", f.Seq, f.Kind, f.Source)
	}
	return nil
}

// Multi presents each frame on every surface in order.
type Multi []Surface

func (m Multi) Present(ctx context.Context, f Frame) error {
	var errs []error
	for _, s := range m {
		if err := s.Present(ctx, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
