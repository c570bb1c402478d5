// Package scheduler implements Component F: it drives action execution,
// maintains per-session ready queues, parks contexts on unfulfilled
// promises, routes fulfilments to wake-ups, and performs memoised
// automation with loop prevention.
package scheduler

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hchlab/hch/internal/action"
	"github.com/hchlab/hch/internal/address"
	"github.com/hchlab/hch/internal/datastore"
	"github.com/hchlab/hch/internal/hchcontext"
	"github.com/hchlab/hch/internal/hypertext"
	"github.com/hchlab/hch/internal/workspace"
)

// Driver is the external "human" collaborator: a pure function of the
// context rendering to action text, per spec §6. ReportError is called
// for locally-recoverable errors (ParseError, UnknownPointer) so the
// driver can re-prompt without the scheduler assuming any particular I/O
// shape.
type Driver interface {
	Prompt(rendering string) (string, error)
	ReportError(err error)
}

type promisePair struct {
	Answer         address.Address
	FinalWorkspace address.Address
}

// Scheduler holds the process-wide state shared across all sessions: the
// datastore and the automation cache (canonical rendering -> action).
// Per §9's design note, the cache is passed explicitly rather than kept
// as module-level mutable state.
type Scheduler struct {
	store  *datastore.Datastore
	cache  map[string]action.Action
	logger *slog.Logger

	// promisePairs tracks, for every workspace address, which promise
	// addresses a Reply issued against it must fulfil. This is scheduler
	// bookkeeping, not workspace content: it is not part of any
	// hypertext's canonical form, mirroring how the source implementation
	// carries answer_link/final_workspace_promise as plain object
	// attributes outside of Workspace.Links().
	promisePairs map[address.Address]promisePair

	// sessions indexes live sessions by ID so a ParkToken (which persists
	// as a plain session ID, not a pointer) can be resolved back to its
	// owning Session on wake.
	sessions map[string]*Session
}

// New constructs a scheduler over an existing (possibly restored)
// datastore, with a possibly-restored automation cache. Pass a nil cache
// for a fresh one.
func New(store *datastore.Datastore, cache map[string]action.Action, logger *slog.Logger) *Scheduler {
	if cache == nil {
		cache = make(map[string]action.Action)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:        store,
		cache:        cache,
		logger:       logger,
		promisePairs: make(map[address.Address]promisePair),
		sessions:     make(map[string]*Session),
	}
}

// Cache returns the live automation cache, e.g. for persistence snapshots.
func (s *Scheduler) Cache() map[string]action.Action { return s.cache }

// Store returns the underlying datastore.
func (s *Scheduler) Store() *datastore.Datastore { return s.store }

// PromisePairs returns the workspace -> (answer, final workspace)
// bookkeeping map, for persistence snapshots.
func (s *Scheduler) PromisePairs() map[address.Address]PromisePair {
	out := make(map[address.Address]PromisePair, len(s.promisePairs))
	for k, v := range s.promisePairs {
		out[k] = PromisePair(v)
	}
	return out
}

// RestorePromisePair re-registers a workspace's promise pair, for
// snapshot restoration.
func (s *Scheduler) RestorePromisePair(workspaceAddr address.Address, pair PromisePair) {
	s.promisePairs[workspaceAddr] = promisePair(pair)
}

// Session looks up a live session by ID.
func (s *Scheduler) Session(id string) (*Session, bool) {
	sess, ok := s.sessions[id]
	return sess, ok
}

// PromisePair is the exported form of promisePair, for persistence.
type PromisePair = promisePair

// Session is a user-facing execution thread bound to a root question
// (spec §3). Its FIFO of ready contexts and root promise address are its
// own; the datastore and automation cache are shared with every other
// session via the owning Scheduler.
type Session struct {
	ID         string
	sched      *Scheduler
	ready      []*hchcontext.Context
	RootAnswer address.Address
}

// ParkToken is registered with the datastore when a context suspends on
// Unlock. It carries everything needed to reconstruct the parked
// successor context and re-enqueue it on its owning session once the
// awaited address is Filled. It is a plain, serializable value (a session
// ID rather than a pointer) so persistence layers can round-trip it.
type ParkToken struct {
	SessionID     string
	WorkspaceAddr address.Address
	Unlocked      map[address.Address]bool
}

// NewSession asks a fresh root question and returns the session that owns
// it, with its initial context ready.
func (s *Scheduler) NewSession(rootQuestionText string) (*Session, error) {
	questionAddr, err := hypertext.InsertText(rootQuestionText, s.store, nil)
	if err != nil {
		return nil, err
	}
	answerAddr := s.store.AllocatePromise()
	finalWorkspaceAddr := s.store.AllocatePromise()
	scratchpadAddr, err := hypertext.InsertText("", s.store, nil)
	if err != nil {
		return nil, err
	}
	ws := workspace.New(address.Address{}, questionAddr, scratchpadAddr, nil)
	wsAddr := s.store.Insert(ws)
	s.promisePairs[wsAddr] = promisePair{Answer: answerAddr, FinalWorkspace: finalWorkspaceAddr}

	ctx, err := hchcontext.New(s.store, wsAddr, nil)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:         uuid.Must(uuid.NewV7()).String(),
		sched:      s,
		ready:      []*hchcontext.Context{ctx},
		RootAnswer: answerAddr,
	}
	s.sessions[sess.ID] = sess
	return sess, nil
}

// AttachSession re-registers a Session reconstructed from persisted state
// (its ID, ready queue, and root answer address) so ParkTokens naming it
// can be resolved on wake, and returns it.
func (s *Scheduler) AttachSession(id string, rootAnswer address.Address, ready []*hchcontext.Context) *Session {
	sess := &Session{ID: id, sched: s, ready: ready, RootAnswer: rootAnswer}
	s.sessions[id] = sess
	return sess
}

// Ready returns a copy of sess's live ready queue, for persistence
// snapshots.
func (sess *Session) Ready() []*hchcontext.Context {
	return append([]*hchcontext.Context(nil), sess.ready...)
}

// Blocked reports whether the session currently has no ready context.
func (sess *Session) Blocked() bool { return len(sess.ready) == 0 }

// ChooseContext pops the next context the driver should see, first
// auto-replaying every cached action at the front of the ready queue
// (spec §4.F step 2). Automation stops, and the driver is consulted,
// either when the front context's rendering is not cached, or when the
// same rendering would be auto-replayed twice within this burst — the
// AutomationLoop case (spec §7). Returns nil, nil if the session has
// nothing ready.
func (s *Scheduler) ChooseContext(sess *Session) (*hchcontext.Context, error) {
	visited := make(map[string]bool)
	for len(sess.ready) > 0 {
		ctx := sess.ready[0]
		rendering := ctx.Rendering()
		act, hit := s.cache[rendering]
		if !hit {
			break
		}
		if visited[rendering] {
			s.logger.Warn("automation loop detected, falling back to driver", "session", sess.ID)
			break
		}
		visited[rendering] = true
		sess.ready = sess.ready[1:]
		s.logger.Debug("automation replay", "session", sess.ID, "action", act.Kind.String())
		if err := s.applyAndEnqueue(sess, ctx, act); err != nil {
			return nil, err
		}
	}
	if len(sess.ready) == 0 {
		return nil, nil
	}
	ctx := sess.ready[0]
	sess.ready = sess.ready[1:]
	return ctx, nil
}

// ResolveAction applies act to ctx and, only once application succeeds,
// records (ctx.Rendering() -> act) in the automation cache. A failed
// application is not cached — the driver is expected to re-prompt on the
// same (still-not-cached) rendering.
func (s *Scheduler) ResolveAction(sess *Session, ctx *hchcontext.Context, act action.Action) error {
	if err := s.applyAndEnqueue(sess, ctx, act); err != nil {
		return err
	}
	s.cache[ctx.Rendering()] = act
	return nil
}

func (s *Scheduler) applyAndEnqueue(sess *Session, ctx *hchcontext.Context, act action.Action) error {
	successor, children, err := s.apply(sess, ctx, act)
	if err != nil {
		return err
	}
	if successor != nil {
		sess.ready = append([]*hchcontext.Context{successor}, sess.ready...)
	}
	sess.ready = append(sess.ready, children...)
	return nil
}

// RunSession drives sess to completion (or blockage) against driver,
// looping ChooseContext/Prompt/ResolveAction the way interface.py's
// UserInterface wires Scheduler to a human. ParseError and
// UnknownPointerError are reported to the driver and re-prompted on the
// same context, per §7's local-recovery policy.
func (s *Scheduler) RunSession(sess *Session, driver Driver) error {
	for {
		ctx, err := s.ChooseContext(sess)
		if err != nil {
			return err
		}
		if ctx == nil {
			return nil
		}
		for {
			text, err := driver.Prompt(ctx.Rendering())
			if err != nil {
				// The context was already popped off the ready queue by
				// ChooseContext; if the driver can't deliver an action for
				// it (quit, EOF, a cancelled context), put it back so a
				// persisted snapshot doesn't lose it.
				sess.ready = append([]*hchcontext.Context{ctx}, sess.ready...)
				return err
			}
			act, perr := action.Parse(text)
			if perr != nil {
				driver.ReportError(perr)
				continue
			}
			err = s.ResolveAction(sess, ctx, act)
			if isRecoverable(err) {
				driver.ReportError(err)
				continue
			}
			if err != nil {
				sess.ready = append([]*hchcontext.Context{ctx}, sess.ready...)
				return err
			}
			break
		}
	}
}

func isRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var parseErr *hypertext.ParseError
	var unknownErr *hypertext.UnknownPointerError
	var actionParseErr *action.ParseError
	var schedUnknownErr *UnknownPointerError
	return errors.As(err, &parseErr) ||
		errors.As(err, &unknownErr) ||
		errors.As(err, &actionParseErr) ||
		errors.As(err, &schedUnknownErr)
}

// apply dispatches a single action against ctx, per spec §4.F step 3.
func (s *Scheduler) apply(sess *Session, ctx *hchcontext.Context, act action.Action) (*hchcontext.Context, []*hchcontext.Context, error) {
	switch act.Kind {
	case action.Ask:
		return s.applyAsk(sess, ctx, act.Text)
	case action.Reply:
		return s.applyReply(sess, ctx, act.Text)
	case action.Unlock:
		return s.applyUnlock(sess, ctx, act.PointerID)
	case action.Scratch:
		return s.applyScratch(sess, ctx, act.Text)
	default:
		return nil, nil, fmt.Errorf("scheduler: unknown action kind %v", act.Kind)
	}
}

func (s *Scheduler) currentWorkspace(addr address.Address) (*workspace.Workspace, error) {
	content, ok := s.store.Lookup(s.store.Resolve(addr))
	if !ok {
		return nil, fmt.Errorf("scheduler: workspace %s is not filled", addr)
	}
	ws, ok := content.(*workspace.Workspace)
	if !ok {
		return nil, fmt.Errorf("scheduler: address %s does not hold a workspace", addr)
	}
	return ws, nil
}

func withDollar(m map[string]address.Address) map[string]address.Address {
	out := make(map[string]address.Address, len(m))
	for k, v := range m {
		out["$"+k] = v
	}
	return out
}

func (s *Scheduler) applyAsk(sess *Session, ctx *hchcontext.Context, text string) (*hchcontext.Context, []*hchcontext.Context, error) {
	subQAddr, err := hypertext.InsertText(text, s.store, withDollar(ctx.PointerNames()))
	if err != nil {
		return nil, nil, err
	}

	answerAddr := s.store.AllocatePromise()
	finalWorkspaceAddr := s.store.AllocatePromise()
	childScratchpad, err := hypertext.InsertText("", s.store, nil)
	if err != nil {
		return nil, nil, err
	}
	childWs := workspace.New(ctx.WorkspaceAddr, subQAddr, childScratchpad, nil)
	childWsAddr := s.store.Insert(childWs)
	s.promisePairs[childWsAddr] = promisePair{Answer: answerAddr, FinalWorkspace: finalWorkspaceAddr}

	currentWs, err := s.currentWorkspace(ctx.WorkspaceAddr)
	if err != nil {
		return nil, nil, err
	}
	successorWs := currentWs.WithSubentry(ctx.WorkspaceAddr, workspace.SubEntry{
		Question:  subQAddr,
		Answer:    answerAddr,
		Workspace: finalWorkspaceAddr,
	})
	successorWsAddr := s.store.Insert(successorWs)
	s.promisePairs[successorWsAddr] = s.promisePairs[ctx.WorkspaceAddr]

	// Zip against ctx's own workspace address (identity), not the new
	// successor: Question/Scratchpad/existing subentries are the same
	// addresses on both sides so an identity zip pairs them exactly,
	// whereas zipping against successorWsAddr walks Links() positionally
	// and misaligns as soon as the two sides' Links() differ in length
	// (e.g. the successor gaining a Predecessor entry the current
	// workspace lacked). The delta this ask introduces is added
	// explicitly below.
	newUnlocked, err := ctx.UnlockedLocationsFor(s.store, ctx.WorkspaceAddr)
	if err != nil {
		return nil, nil, err
	}
	delete(newUnlocked, ctx.WorkspaceAddr)
	newUnlocked[subQAddr] = true
	newUnlocked[successorWsAddr] = true

	successorCtx, err := hchcontext.New(s.store, successorWsAddr, newUnlocked)
	if err != nil {
		return nil, nil, err
	}
	childCtx, err := hchcontext.New(s.store, childWsAddr, nil)
	if err != nil {
		return nil, nil, err
	}

	return successorCtx, []*hchcontext.Context{childCtx}, nil
}

func (s *Scheduler) applyReply(sess *Session, ctx *hchcontext.Context, text string) (*hchcontext.Context, []*hchcontext.Context, error) {
	pair, ok := s.promisePairs[ctx.WorkspaceAddr]
	if !ok {
		return nil, nil, &MissingPromiseError{WorkspaceAddr: ctx.WorkspaceAddr}
	}

	answerHT, err := hypertext.BuildText(text, s.store, withDollar(ctx.PointerNames()))
	if err != nil {
		return nil, nil, err
	}
	answerWaiters, err := s.store.Fulfil(pair.Answer, answerHT)
	if err != nil {
		return nil, nil, err
	}

	currentWs, err := s.currentWorkspace(ctx.WorkspaceAddr)
	if err != nil {
		return nil, nil, err
	}
	wsWaiters, err := s.store.Fulfil(pair.FinalWorkspace, currentWs)
	if err != nil {
		return nil, nil, err
	}

	if err := s.wake(answerWaiters); err != nil {
		return nil, nil, err
	}
	if err := s.wake(wsWaiters); err != nil {
		return nil, nil, err
	}
	return nil, nil, nil
}

func (s *Scheduler) applyUnlock(sess *Session, ctx *hchcontext.Context, pointerID string) (*hchcontext.Context, []*hchcontext.Context, error) {
	targetAddr, ok := ctx.PointerNames()[pointerID]
	if !ok {
		return nil, nil, &UnknownPointerError{PointerID: pointerID}
	}

	newUnlocked, err := ctx.UnlockedLocationsFor(s.store, ctx.WorkspaceAddr)
	if err != nil {
		return nil, nil, err
	}
	newUnlocked[targetAddr] = true

	// Unlock's own successor is back-queued, not front-queued: unlike
	// Ask/Scratch (deterministic successors, shown next), an Unlock that
	// resolves immediately competes on equal footing with whatever else
	// is already ready, so it goes to the back of sess.ready via the
	// children slot rather than jumping the queue via the successor slot.
	if s.store.IsFulfilled(targetAddr) {
		successorCtx, err := hchcontext.New(s.store, ctx.WorkspaceAddr, newUnlocked)
		if err != nil {
			return nil, nil, err
		}
		return nil, []*hchcontext.Context{successorCtx}, nil
	}

	token := ParkToken{SessionID: sess.ID, WorkspaceAddr: ctx.WorkspaceAddr, Unlocked: newUnlocked}
	if s.store.Await(targetAddr, token) {
		successorCtx, err := hchcontext.New(s.store, ctx.WorkspaceAddr, newUnlocked)
		if err != nil {
			return nil, nil, err
		}
		return nil, []*hchcontext.Context{successorCtx}, nil
	}
	return nil, nil, nil
}

func (s *Scheduler) applyScratch(sess *Session, ctx *hchcontext.Context, text string) (*hchcontext.Context, []*hchcontext.Context, error) {
	newScratchpadAddr, err := hypertext.InsertText(text, s.store, withDollar(ctx.PointerNames()))
	if err != nil {
		return nil, nil, err
	}

	currentWs, err := s.currentWorkspace(ctx.WorkspaceAddr)
	if err != nil {
		return nil, nil, err
	}
	successorWs := currentWs.WithScratchpad(ctx.WorkspaceAddr, newScratchpadAddr)
	successorWsAddr := s.store.Insert(successorWs)
	s.promisePairs[successorWsAddr] = s.promisePairs[ctx.WorkspaceAddr]

	// See applyAsk: zip against ctx's own workspace address (identity) so
	// Question/existing-subentry addresses pair exactly, rather than
	// against successorWsAddr, whose Links() can be longer than ctx's
	// (a gained Predecessor entry) and shift every positional pairing
	// after it.
	newUnlocked, err := ctx.UnlockedLocationsFor(s.store, ctx.WorkspaceAddr)
	if err != nil {
		return nil, nil, err
	}
	delete(newUnlocked, ctx.WorkspaceAddr)
	newUnlocked[successorWsAddr] = true
	newUnlocked[newScratchpadAddr] = true

	successorCtx, err := hchcontext.New(s.store, successorWsAddr, newUnlocked)
	if err != nil {
		return nil, nil, err
	}
	return successorCtx, nil, nil
}

// wake reconstructs and re-enqueues every parked context named by tokens,
// per §4.F's alias-wake-up rule: each token fires exactly once, on
// whichever Fulfil call transitively resolves its awaited address.
func (s *Scheduler) wake(tokens []datastore.Token) error {
	for _, t := range tokens {
		pt, ok := t.(ParkToken)
		if !ok {
			continue
		}
		sess, ok := s.sessions[pt.SessionID]
		if !ok {
			return fmt.Errorf("scheduler: park token names unknown session %q", pt.SessionID)
		}
		ctx, err := hchcontext.New(s.store, pt.WorkspaceAddr, pt.Unlocked)
		if err != nil {
			return err
		}
		sess.ready = append(sess.ready, ctx)
	}
	return nil
}
