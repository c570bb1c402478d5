package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hchlab/hch/internal/action"
	"github.com/hchlab/hch/internal/address"
	"github.com/hchlab/hch/internal/datastore"
	"github.com/hchlab/hch/internal/hchcontext"
	"github.com/hchlab/hch/internal/scheduler"
)

// LoadEngine reconstructs a Scheduler and its live sessions from a
// previously saved snapshot. An empty database (no rows in slots)
// produces a fresh Scheduler with no sessions, so callers can Open a
// path unconditionally and only branch on len(sessions) == 0 to decide
// whether to ask a brand-new root question.
func LoadEngine(ctx context.Context, s *Store, logger *slog.Logger) (*scheduler.Scheduler, []*scheduler.Session, error) {
	db := datastore.New()

	if err := loadSlots(ctx, s, db); err != nil {
		return nil, nil, err
	}
	if err := loadAllocator(ctx, s, db); err != nil {
		return nil, nil, err
	}

	cache, err := loadAutomationCache(ctx, s)
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(db, cache, logger)

	pairs, err := loadPromisePairs(ctx, s)
	if err != nil {
		return nil, nil, err
	}
	for wsAddr, pair := range pairs {
		sched.RestorePromisePair(wsAddr, pair)
	}

	sessions, err := loadSessions(ctx, s, sched, db)
	if err != nil {
		return nil, nil, err
	}

	return sched, sessions, nil
}

func loadSlots(ctx context.Context, s *Store, db *datastore.Datastore) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT addr, kind, alias_target, content_json FROM slots ORDER BY addr ASC
	`)
	if err != nil {
		return fmt.Errorf("load slots: %w", err)
	}
	defer rows.Close()

	// Collect every slot before loading waiters: the store holds a single
	// connection, so a second query cannot run while rows is still open.
	var snaps []datastore.SlotSnapshot
	var addrs []int64
	for rows.Next() {
		var addr int64
		var kind string
		var aliasTarget sql.NullInt64
		var contentJSON sql.NullString
		if err := rows.Scan(&addr, &kind, &aliasTarget, &contentJSON); err != nil {
			return fmt.Errorf("load slots: scan: %w", err)
		}

		snap := datastore.SlotSnapshot{Addr: addrFrom(addr), Kind: kind}
		switch kind {
		case "filled":
			if !contentJSON.Valid {
				return fmt.Errorf("load slots: filled slot %d missing content", addr)
			}
			content, err := decodeContent(addrFrom, contentJSON.String)
			if err != nil {
				return fmt.Errorf("load slots: slot %d: %w", addr, err)
			}
			snap.Content = content
		case "alias":
			if !aliasTarget.Valid {
				return fmt.Errorf("load slots: alias slot %d missing target", addr)
			}
			snap.AliasTarget = addrFrom(aliasTarget.Int64)
		}
		snaps = append(snaps, snap)
		addrs = append(addrs, addr)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	for i, snap := range snaps {
		waiters, err := loadWaiters(ctx, s, addrs[i])
		if err != nil {
			return err
		}
		snap.Waiters = waiters

		if err := db.Import(snap); err != nil {
			return fmt.Errorf("load slots: import slot %d: %w", addrs[i], err)
		}
	}
	return nil
}

func loadWaiters(ctx context.Context, s *Store, addr int64) ([]datastore.Token, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, workspace_addr, unlocked_json FROM waiters WHERE addr = ?
	`, addr)
	if err != nil {
		return nil, fmt.Errorf("load waiters: %w", err)
	}
	defer rows.Close()

	var tokens []datastore.Token
	for rows.Next() {
		var sessionID string
		var workspaceAddr int64
		var unlockedJSON string
		if err := rows.Scan(&sessionID, &workspaceAddr, &unlockedJSON); err != nil {
			return nil, fmt.Errorf("load waiters: scan: %w", err)
		}
		var ids []int64
		if err := json.Unmarshal([]byte(unlockedJSON), &ids); err != nil {
			return nil, fmt.Errorf("load waiters: decode unlocked set: %w", err)
		}
		unlocked := make(map[address.Address]bool, len(ids))
		for _, id := range ids {
			unlocked[addrFrom(id)] = true
		}
		tokens = append(tokens, scheduler.ParkToken{
			SessionID:     sessionID,
			WorkspaceAddr: addrFrom(workspaceAddr),
			Unlocked:      unlocked,
		})
	}
	return tokens, rows.Err()
}

func loadAllocator(ctx context.Context, s *Store, db *datastore.Datastore) error {
	var next sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT next FROM allocator WHERE id = 0`).Scan(&next)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load allocator: %w", err)
	}
	db.RestoreAllocator(uint64(next.Int64))
	return nil
}

func loadAutomationCache(ctx context.Context, s *Store) (map[string]action.Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rendering, action_kind, action_text, pointer_id FROM automation_cache
	`)
	if err != nil {
		return nil, fmt.Errorf("load automation cache: %w", err)
	}
	defer rows.Close()

	cache := make(map[string]action.Action)
	for rows.Next() {
		var rendering, kindStr, text, pointerID string
		if err := rows.Scan(&rendering, &kindStr, &text, &pointerID); err != nil {
			return nil, fmt.Errorf("load automation cache: scan: %w", err)
		}
		kind, err := parseActionKind(kindStr)
		if err != nil {
			return nil, err
		}
		cache[rendering] = action.Action{Kind: kind, Text: text, PointerID: pointerID}
	}
	return cache, rows.Err()
}

func parseActionKind(s string) (action.Kind, error) {
	switch s {
	case "ask":
		return action.Ask, nil
	case "reply":
		return action.Reply, nil
	case "unlock":
		return action.Unlock, nil
	case "scratch":
		return action.Scratch, nil
	default:
		return 0, fmt.Errorf("load automation cache: unknown action kind %q", s)
	}
}

func loadPromisePairs(ctx context.Context, s *Store) (map[address.Address]scheduler.PromisePair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT workspace_addr, answer_addr, final_workspace_addr FROM promise_pairs
	`)
	if err != nil {
		return nil, fmt.Errorf("load promise pairs: %w", err)
	}
	defer rows.Close()

	pairs := make(map[address.Address]scheduler.PromisePair)
	for rows.Next() {
		var wsAddr, answerAddr, finalWsAddr int64
		if err := rows.Scan(&wsAddr, &answerAddr, &finalWsAddr); err != nil {
			return nil, fmt.Errorf("load promise pairs: scan: %w", err)
		}
		pairs[addrFrom(wsAddr)] = scheduler.PromisePair{
			Answer:         addrFrom(answerAddr),
			FinalWorkspace: addrFrom(finalWsAddr),
		}
	}
	return pairs, rows.Err()
}

func loadSessions(ctx context.Context, s *Store, sched *scheduler.Scheduler, db *datastore.Datastore) ([]*scheduler.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, root_answer_addr, ready_json FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*scheduler.Session
	for rows.Next() {
		var id string
		var rootAnswerAddr int64
		var readyJSON string
		if err := rows.Scan(&id, &rootAnswerAddr, &readyJSON); err != nil {
			return nil, fmt.Errorf("load sessions: scan: %w", err)
		}
		var entries []readyEntry
		if err := json.Unmarshal([]byte(readyJSON), &entries); err != nil {
			return nil, fmt.Errorf("load sessions: decode ready queue: %w", err)
		}
		ready := make([]*hchcontext.Context, 0, len(entries))
		for _, e := range entries {
			unlocked := make(map[address.Address]bool, len(e.Unlocked))
			for _, id := range e.Unlocked {
				unlocked[addrFrom(id)] = true
			}
			ctx, err := hchcontext.New(db, addrFrom(e.WorkspaceAddr), unlocked)
			if err != nil {
				return nil, fmt.Errorf("load sessions: rebuild context: %w", err)
			}
			ready = append(ready, ctx)
		}
		sessions = append(sessions, sched.AttachSession(id, addrFrom(rootAnswerAddr), ready))
	}
	return sessions, rows.Err()
}
