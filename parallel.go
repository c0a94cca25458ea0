package zonebuf

import "golang.org/x/sync/errgroup"

// decodeParallel splits zones into one contiguous chunk per worker. Each
// chunk stops at its first failure; the error reported is the one from the
// lowest chunk, which is the error a sequential decode would return.
func (d *Decoder) decodeParallel(b *ZoneBuffer, zones []Zone) error {
	workers := min(d.Opts.Workers, len(zones))
	chunk := (len(zones) + workers - 1) / workers
	errs := make([]error, workers)

	var g errgroup.Group
	g.SetLimit(workers)
	for w := 0; w < workers; w++ {
		w := w // per-iteration copy (pre-Go 1.22 loop semantics)
		lo := w * chunk
		hi := min(lo+chunk, len(zones))
		if lo >= hi {
			break
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := d.decodeInto(b, i, &zones[i]); err != nil {
					errs[w] = err
					return err
				}
			}
			return nil
		})
	}
	if g.Wait() == nil {
		return nil
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
