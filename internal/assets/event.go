package assets

import (
	"time"

	"github.com/pv/assetcache/internal/minify"
)

// StateBypassed marks a bundle rendered from its sources without a build.
const StateBypassed = "bypassed"

// Event describes one JavaScript or StyleSheet call.
type Event struct {
	Kind        Kind
	Environment string
	Minified    bool
	Files       []string // relative to the public path
	Fingerprint string
	Filename    string
	State       string
	Hit         bool
	Swept       []string
	Duration    time.Duration
	Err         error
	Time        time.Time
}

// Observer receives build events. OnBuild runs synchronously on the
// building goroutine and must not block.
type Observer interface {
	OnBuild(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

func (f ObserverFunc) OnBuild(ev Event) { f(ev) }

func newEvent(kind Kind, env string, refs []string, res *minify.Result, err error) Event {
	ev := Event{
		Kind:        kind,
		Environment: env,
		Minified:    res != nil,
		Files:       append([]string(nil), refs...),
		State:       StateBypassed,
		Err:         err,
		Time:        time.Now(),
	}
	if res == nil {
		return ev
	}
	if res.Files.Len() > 0 {
		ev.Files = res.Files.Relative()
	}
	ev.Fingerprint = res.Fingerprint.String()
	ev.Filename = res.Filename
	ev.State = res.State.String()
	ev.Hit = res.Hit()
	ev.Swept = res.Swept
	return ev
}
