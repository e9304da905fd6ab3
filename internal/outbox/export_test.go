package outbox

import "time"

func SetClock(p *Poller, now func() time.Time) {
	p.now = now
}
