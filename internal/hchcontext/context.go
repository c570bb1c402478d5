// Package hchcontext implements Component D: a workspace view plus a set
// of unlocked addresses, together with deterministic pointer-ID naming and
// the externally visible rendering format from spec §6.
package hchcontext

import (
	"fmt"
	"strings"

	"github.com/hchlab/hch/internal/address"
	"github.com/hchlab/hch/internal/hypertext"
	"github.com/hchlab/hch/internal/workspace"
)

// Store is the subset of datastore behaviour a Context needs.
type Store interface {
	Resolve(a address.Address) address.Address
	Lookup(a address.Address) (hypertext.Hypertext, bool)
}

// Context is a workspace view plus a set of unlocked addresses, per
// spec §3. It has no identity beyond its canonical displayed form.
type Context struct {
	WorkspaceAddr address.Address
	Unlocked      map[address.Address]bool

	pointerNames map[address.Address]string
	byName       map[string]address.Address
	rendering    string
}

// New constructs a context over workspaceAddr. If unlocked is nil, the
// default unlocked set is used: the question, scratchpad, and every
// sub-question address are unlocked; predecessor, sub-answers, and
// sub-workspaces are locked.
func New(store Store, workspaceAddr address.Address, unlocked map[address.Address]bool) (*Context, error) {
	ws, err := lookupWorkspace(store, workspaceAddr)
	if err != nil {
		return nil, err
	}

	set := unlocked
	if set == nil {
		set = defaultUnlocked(workspaceAddr, ws)
	} else {
		set = cloneSet(set)
	}
	set[workspaceAddr] = true

	c := &Context{WorkspaceAddr: workspaceAddr, Unlocked: set}
	names, byName, err := c.namePointers(store, workspaceAddr)
	if err != nil {
		return nil, err
	}
	c.pointerNames = names
	c.byName = byName

	rendering, err := c.render(store)
	if err != nil {
		return nil, err
	}
	c.rendering = rendering
	return c, nil
}

func defaultUnlocked(workspaceAddr address.Address, ws *workspace.Workspace) map[address.Address]bool {
	set := map[address.Address]bool{
		workspaceAddr: true,
		ws.Question:   true,
		ws.Scratchpad: true,
	}
	for _, e := range ws.Subentries {
		set[e.Question] = true
	}
	return set
}

func cloneSet(s map[address.Address]bool) map[address.Address]bool {
	out := make(map[address.Address]bool, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func lookupWorkspace(store Store, addr address.Address) (*workspace.Workspace, error) {
	resolved := store.Resolve(addr)
	h, ok := store.Lookup(resolved)
	if !ok {
		return nil, fmt.Errorf("hchcontext: workspace address %s is not filled", addr)
	}
	ws, ok := h.(*workspace.Workspace)
	if !ok {
		return nil, fmt.Errorf("hchcontext: address %s does not hold a workspace", addr)
	}
	return ws, nil
}

// Rendering returns the context's canonical printed form, computed once at
// construction. Automation identity is defined on this string.
func (c *Context) Rendering() string { return c.rendering }

// PointerNames returns the display-name -> address map for this context,
// as consumed by the action-text parser and the "unlock" action.
func (c *Context) PointerNames() map[string]address.Address { return c.byName }

// NamePointersFor computes the display-name -> address map for a
// different (but structurally-parallel) workspace, remapping this
// context's unlock decisions onto it. Used when an action must resolve
// pointer tokens against the successor workspace it is about to build.
func (c *Context) NamePointersFor(store Store, target address.Address) (map[string]address.Address, error) {
	_, byName, err := c.namePointers(store, target)
	return byName, err
}

// UnlockedLocationsFor recomputes the unlocked address set for a
// different (but structurally-parallel) workspace, by walking this
// context's own workspace and target in lockstep and yielding target-side
// addresses wherever the corresponding own-side address is unlocked.
func (c *Context) UnlockedLocationsFor(store Store, target address.Address) (map[address.Address]bool, error) {
	pairs, err := zipUnlockedWithWorkspace(store, c.WorkspaceAddr, c.Unlocked, target)
	if err != nil {
		return nil, err
	}
	out := make(map[address.Address]bool, len(pairs))
	for _, p := range pairs {
		out[p.their] = true
	}
	return out, nil
}

type pair struct{ mine, their address.Address }

// zipUnlockedWithWorkspace performs a parallel BFS over (own, target)
// address pairs starting at (ownRoot, targetRoot), descending into both
// trees' Links() in lockstep. Whenever the "mine" side of a pair is a
// member of unlocked, the pair is yielded and both sides are expanded.
//
// Callers must only pass a targetRoot whose Links() shape matches
// ownRoot's at every depth the walk reaches (the identity case,
// ownRoot == targetRoot, always satisfies this trivially); otherwise the
// positional pairing silently misaligns once the two sides' Links()
// diverge in length.
func zipUnlockedWithWorkspace(store Store, ownRoot address.Address, unlocked map[address.Address]bool, targetRoot address.Address) ([]pair, error) {
	type frontierItem struct{ mine, their address.Address }
	frontier := []frontierItem{{ownRoot, targetRoot}}
	seen := map[frontierItem]bool{frontier[0]: true}
	var out []pair

	for len(frontier) > 0 {
		item := frontier[0]
		frontier = frontier[1:]
		if !unlocked[item.mine] {
			continue
		}
		out = append(out, pair{mine: item.mine, their: item.their})

		myPage, myOK := store.Lookup(store.Resolve(item.mine))
		theirPage, theirOK := store.Lookup(store.Resolve(item.their))
		if !myOK || !theirOK {
			continue
		}
		myLinks := myPage.Links()
		theirLinks := theirPage.Links()
		n := len(myLinks)
		if len(theirLinks) < n {
			n = len(theirLinks)
		}
		for i := 0; i < n; i++ {
			next := frontierItem{myLinks[i], theirLinks[i]}
			if !seen[next] {
				seen[next] = true
				frontier = append(frontier, next)
			}
		}
	}
	return out, nil
}

// namePointers assigns structural tags (p, s, q<i>, a<i>, w<i>) to
// target's own top-level fields, then assigns sequential "$<n>" names to
// every other address reachable through the unlocked frontier, in BFS
// order.
func (c *Context) namePointers(store Store, target address.Address) (map[address.Address]string, map[string]address.Address, error) {
	ws, err := lookupWorkspace(store, target)
	if err != nil {
		return nil, nil, err
	}

	pointers := make(map[address.Address]string)
	backward := make(map[string]address.Address)
	assign := func(a address.Address, name string) {
		if _, exists := pointers[a]; exists {
			return
		}
		pointers[a] = name
		backward[name] = a
	}

	if !ws.Predecessor.Zero() {
		assign(ws.Predecessor, "p")
	}
	assign(ws.Scratchpad, "s")
	for i, e := range ws.Subentries {
		n := i + 1
		assign(e.Question, fmt.Sprintf("q%d", n))
		assign(e.Answer, fmt.Sprintf("a%d", n))
		assign(e.Workspace, fmt.Sprintf("w%d", n))
	}

	pairs, err := zipUnlockedWithWorkspace(store, c.WorkspaceAddr, c.Unlocked, target)
	if err != nil {
		return nil, nil, err
	}
	count := 0
	for _, p := range pairs {
		theirPage, ok := store.Lookup(store.Resolve(p.their))
		if !ok {
			continue
		}
		for _, visible := range theirPage.Links() {
			if _, exists := pointers[visible]; exists {
				continue
			}
			count++
			assign(visible, fmt.Sprintf("%d", count))
		}
	}
	return pointers, backward, nil
}

// name is a hypertext.PointerNamer adapter over this context's pointer
// map, used only by parts of the render path that need "$<id>" lookups
// with the leading "$" attached.
func (c *Context) name(a address.Address) string {
	if n, ok := c.pointerNames[a]; ok {
		return "$" + n
	}
	return a.Token()
}

// render builds the whole-context presentation described in spec §6, via
// a topological (Kahn's-algorithm) traversal of the unlocked reachable
// subgraph, computing display text bottom-up so a parent's inline
// rendering can embed its already-rendered children.
func (c *Context) render(store Store) (string, error) {
	ws, err := lookupWorkspace(store, c.WorkspaceAddr)
	if err != nil {
		return "", err
	}

	pairs, err := zipUnlockedWithWorkspace(store, c.WorkspaceAddr, c.Unlocked, c.WorkspaceAddr)
	if err != nil {
		return "", err
	}

	include := make(map[address.Address]int)
	for _, p := range pairs {
		page, ok := store.Lookup(store.Resolve(p.their))
		if !ok {
			continue
		}
		for _, link := range page.Links() {
			include[link]++
		}
	}

	order := []address.Address{c.WorkspaceAddr}
	queue := []address.Address{c.WorkspaceAddr}
	for len(queue) > 0 {
		link := queue[0]
		queue = queue[1:]
		if !c.Unlocked[link] {
			continue
		}
		page, ok := store.Lookup(store.Resolve(link))
		if !ok {
			continue
		}
		for _, out := range page.Links() {
			include[out]--
			if include[out] == 0 {
				order = append(order, out)
				queue = append(queue, out)
			}
		}
	}

	linkText := make(map[address.Address]string)
	for i := len(order) - 1; i >= 0; i-- {
		link := order[i]
		if link == c.WorkspaceAddr {
			continue
		}
		if !c.Unlocked[link] {
			linkText[link] = c.name(link)
			continue
		}
		page, ok := store.Lookup(store.Resolve(link))
		if !ok {
			linkText[link] = c.name(link)
			continue
		}
		linkText[link] = fmt.Sprintf("[%s: %s]", c.name(link), page.RenderWithMap(lockedDisplayMap(page, c, linkText)))
	}

	var subBuilder strings.Builder
	for i, e := range ws.Subentries {
		if i > 0 {
			subBuilder.WriteString("\n")
		}
		fmt.Fprintf(&subBuilder, "Sub %d. Q: %s\n       A: %s   W: %s",
			i+1, linkText[e.Question], linkText[e.Answer], linkText[e.Workspace])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question:    %s\n", linkText[ws.Question])
	fmt.Fprintf(&b, "Scratchpad:  %s\n", linkText[ws.Scratchpad])
	b.WriteString(subBuilder.String())
	if !ws.Predecessor.Zero() {
		if subBuilder.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Predecessor: %s", linkText[ws.Predecessor])
	}
	return b.String(), nil
}

// lockedDisplayMap returns the display map used to render page one level
// inline: every one of page's own children shows as its bare pointer
// name (single-level unlock), except where that child has itself already
// been computed as an unlocked inline block in linkText (nested unlocks
// compose through the shared bottom-up map).
func lockedDisplayMap(page hypertext.Hypertext, c *Context, linkText map[address.Address]string) map[address.Address]string {
	m := make(map[address.Address]string)
	for _, link := range page.Links() {
		if text, ok := linkText[link]; ok {
			m[link] = text
			continue
		}
		m[link] = c.name(link)
	}
	return m
}
