package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"opscore/internal/auth"
)

type cached struct {
	m       *Machine
	lastUse time.Time
}

// Manager hands out the one authoritative Machine per session id, so
// concurrent requests from the same client session serialize through a
// single state holder. Idle machines are evicted by Sweep; their state
// survives in the store and reloads on next use.
type Manager struct {
	mu       sync.Mutex
	codec    *auth.Codec
	verifier CredentialVerifier
	store    Store
	lg       *zap.SugaredLogger
	machines map[string]*cached
}

func NewManager(codec *auth.Codec, verifier CredentialVerifier, store Store, lg *zap.SugaredLogger) *Manager {
	return &Manager{
		codec:    codec,
		verifier: verifier,
		store:    store,
		lg:       lg,
		machines: make(map[string]*cached),
	}
}

// Machine returns the state machine for the session id, restoring its
// record from the store on first use after a restart or eviction.
func (mgr *Manager) Machine(ctx context.Context, id string) (*Machine, error) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if c, ok := mgr.machines[id]; ok {
		c.lastUse = time.Now()
		return c.m, nil
	}
	m, err := NewMachine(ctx, id, mgr.codec, mgr.verifier, mgr.store, mgr.lg)
	if err != nil {
		return nil, err
	}
	mgr.machines[id] = &cached{m: m, lastUse: time.Now()}
	return m, nil
}

// Evict drops the cached machine for a session, forcing the next use to
// reload from the store.
func (mgr *Manager) Evict(id string) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	delete(mgr.machines, id)
}

// Sweep evicts machines not used within maxIdle and returns how many were
// dropped.
func (mgr *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	n := 0
	for id, c := range mgr.machines {
		if c.lastUse.Before(cutoff) {
			delete(mgr.machines, id)
			n++
		}
	}
	return n
}

// StartSweeper sweeps idle machines on every tick until ctx is done.
func (mgr *Manager) StartSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := mgr.Sweep(maxIdle); n > 0 {
					mgr.lg.Debugw("swept idle session machines", "evicted", n)
				}
			}
		}
	}()
}
