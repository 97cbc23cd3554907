// placement.go - Geraete-Platzierung eines Runners im Offload-Modus
// Acquire verschiebt das Modell auf den Beschleuniger, das zurueckgegebene
// release verschiebt es wieder auf den Host. Ohne Offload ist beides ein No-Op.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DeviceCPU ist der Host-Speicher
const DeviceCPU = "cpu"

// releaseTimeout begrenzt das Zurueckschieben, auch wenn der Request-Context abgelaufen ist
const releaseTimeout = 2 * time.Minute

// Mover verschiebt ein Modell auf ein Geraet
type Mover interface {
	MoveTo(ctx context.Context, device string) error
}

// Placement serialisiert die Nutzung eines Runners und steuert dessen Geraet
type Placement struct {
	mu      sync.Mutex
	mover   Mover
	name    string
	device  string
	offload bool
}

// NewPlacement erstellt eine Platzierung fuer mover auf device
func NewPlacement(name string, mover Mover, device string, offload bool) *Placement {
	return &Placement{name: name, mover: mover, device: device, offload: offload}
}

// Init setzt die Startplatzierung: Host bei Offload, sonst der Beschleuniger
func (p *Placement) Init(ctx context.Context) error {
	target := p.device
	if p.offload {
		target = DeviceCPU
	}
	if err := p.mover.MoveTo(ctx, target); err != nil {
		return fmt.Errorf("%s auf %s verschieben fehlgeschlagen: %w", p.name, target, err)
	}
	return nil
}

// Offload meldet ob der Runner zwischen Host und Beschleuniger pendelt
func (p *Placement) Offload() bool { return p.offload }

// Acquire reserviert den Runner exklusiv und verschiebt ihn bei Offload auf den
// Beschleuniger. release muss genau einmal aufgerufen werden, auch im Fehlerfall.
func (p *Placement) Acquire(ctx context.Context) (release func(), err error) {
	p.mu.Lock()
	if !p.offload {
		return p.unlockOnce(func() {}), nil
	}

	if err := p.mover.MoveTo(ctx, p.device); err != nil {
		// Teilweise verschoben? Zurueck auf den Host, dann freigeben
		p.moveToHost(ctx)
		p.mu.Unlock()
		return nil, fmt.Errorf("%s auf %s verschieben fehlgeschlagen: %w", p.name, p.device, err)
	}

	return p.unlockOnce(func() { p.moveToHost(ctx) }), nil
}

func (p *Placement) moveToHost(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := p.mover.MoveTo(ctx, DeviceCPU); err != nil {
		slog.Error("moving model back to host failed", "runner", p.name, "error", err)
	}
}

func (p *Placement) unlockOnce(fn func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			defer p.mu.Unlock()
			fn()
		})
	}
}

// MoveTo implementiert Mover fuer Runner ueber POST /device
func (r *Runner) MoveTo(ctx context.Context, device string) error {
	return r.postJSON(ctx, "/device", DeviceRequest{Device: device}, nil)
}
