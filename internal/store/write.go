package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hchlab/hch/internal/address"
	"github.com/hchlab/hch/internal/hchcontext"
	"github.com/hchlab/hch/internal/ir"
	"github.com/hchlab/hch/internal/scheduler"
)

func addrOf(a address.Address) int64   { return int64(a.Uint64()) }
func addrFrom(n int64) address.Address { return address.FromUint64(uint64(n)) }

// SaveEngine snapshots the full engine state — every datastore slot, the
// automation cache, workspace promise-pair bookkeeping, and every
// session's ready queue — into a single transaction. It replaces any
// prior snapshot in the database: this is a checkpoint, not an
// append-only log, since the datastore's in-memory state at a point in
// time is exactly what needs to survive a restart.
func SaveEngine(ctx context.Context, s *Store, sched *scheduler.Scheduler, sessions []*scheduler.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save engine: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM slots", "DELETE FROM waiters", "DELETE FROM automation_cache", "DELETE FROM sessions", "DELETE FROM promise_pairs", "DELETE FROM allocator"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("save engine: clear tables: %w", err)
		}
	}

	snaps, allocatorNext := sched.Store().Export()
	for _, snap := range snaps {
		var canonical, contentJSON any
		var aliasTarget any
		switch snap.Kind {
		case "filled":
			obj, err := encodeContent(addrOf, snap.Content)
			if err != nil {
				return fmt.Errorf("save engine: encode slot %s: %w", snap.Addr, err)
			}
			data, err := ir.MarshalCanonical(obj)
			if err != nil {
				return fmt.Errorf("save engine: marshal slot %s: %w", snap.Addr, err)
			}
			contentJSON = string(data)
			canonical = snap.Content.Canonical(sched.Store())
		case "alias":
			aliasTarget = addrOf(snap.AliasTarget)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO slots (addr, kind, canonical, alias_target, content_json)
			VALUES (?, ?, ?, ?, ?)
		`, addrOf(snap.Addr), snap.Kind, canonical, aliasTarget, contentJSON); err != nil {
			return fmt.Errorf("save engine: insert slot %s: %w", snap.Addr, err)
		}

		for _, tok := range snap.Waiters {
			pt, ok := tok.(scheduler.ParkToken)
			if !ok {
				continue
			}
			unlockedJSON, err := marshalUnlocked(pt.Unlocked)
			if err != nil {
				return fmt.Errorf("save engine: marshal waiter unlocked set: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO waiters (addr, session_id, workspace_addr, unlocked_json)
				VALUES (?, ?, ?, ?)
			`, addrOf(snap.Addr), pt.SessionID, addrOf(pt.WorkspaceAddr), unlockedJSON); err != nil {
				return fmt.Errorf("save engine: insert waiter: %w", err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO allocator (id, next) VALUES (0, ?)`, allocatorNext); err != nil {
		return fmt.Errorf("save engine: insert allocator: %w", err)
	}

	for rendering, act := range sched.Cache() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO automation_cache (rendering, action_kind, action_text, pointer_id)
			VALUES (?, ?, ?, ?)
		`, rendering, act.Kind.String(), act.Text, act.PointerID); err != nil {
			return fmt.Errorf("save engine: insert automation cache entry: %w", err)
		}
	}

	for wsAddr, pair := range sched.PromisePairs() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO promise_pairs (workspace_addr, answer_addr, final_workspace_addr)
			VALUES (?, ?, ?)
		`, addrOf(wsAddr), addrOf(pair.Answer), addrOf(pair.FinalWorkspace)); err != nil {
			return fmt.Errorf("save engine: insert promise pair: %w", err)
		}
	}

	for _, sess := range sessions {
		readyJSON, err := marshalReady(sess.Ready())
		if err != nil {
			return fmt.Errorf("save engine: marshal session %s ready queue: %w", sess.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, root_answer_addr, ready_json)
			VALUES (?, ?, ?)
		`, sess.ID, addrOf(sess.RootAnswer), readyJSON); err != nil {
			return fmt.Errorf("save engine: insert session %s: %w", sess.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save engine: commit: %w", err)
	}
	return nil
}

type readyEntry struct {
	WorkspaceAddr int64   `json:"workspace_addr"`
	Unlocked      []int64 `json:"unlocked"`
}

func marshalReady(ready []*hchcontext.Context) (string, error) {
	entries := make([]readyEntry, 0, len(ready))
	for _, ctx := range ready {
		unlocked := make([]int64, 0, len(ctx.Unlocked))
		for a := range ctx.Unlocked {
			unlocked = append(unlocked, addrOf(a))
		}
		entries = append(entries, readyEntry{WorkspaceAddr: addrOf(ctx.WorkspaceAddr), Unlocked: unlocked})
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func marshalUnlocked(unlocked map[address.Address]bool) (string, error) {
	ids := make([]int64, 0, len(unlocked))
	for a := range unlocked {
		ids = append(ids, addrOf(a))
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
