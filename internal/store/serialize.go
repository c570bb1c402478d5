package store

import (
	"encoding/json"
	"fmt"

	"github.com/hchlab/hch/internal/address"
	"github.com/hchlab/hch/internal/hypertext"
	"github.com/hchlab/hch/internal/ir"
	"github.com/hchlab/hch/internal/workspace"
)

// encodeContent converts a piece of hypertext content into an IRObject so
// it can be written as RFC 8785 canonical JSON. This is the storage
// encoding only — it has no bearing on the datastore's own interning,
// which is keyed on Hypertext.Canonical.
func encodeContent(addrOf func(address.Address) int64, h hypertext.Hypertext) (ir.IRObject, error) {
	switch v := h.(type) {
	case *hypertext.RawHypertext:
		chunks := make(ir.IRArray, 0, len(v.Chunks))
		for _, c := range v.Chunks {
			if c.IsAddr {
				chunks = append(chunks, ir.IRObject{"addr": ir.IRInt(addrOf(c.Addr))})
			} else {
				chunks = append(chunks, ir.IRObject{"text": ir.IRString(c.Text)})
			}
		}
		return ir.IRObject{"type": ir.IRString("raw"), "chunks": chunks}, nil
	case *workspace.Workspace:
		obj := ir.IRObject{
			"type":       ir.IRString("workspace"),
			"question":   ir.IRInt(addrOf(v.Question)),
			"scratchpad": ir.IRInt(addrOf(v.Scratchpad)),
		}
		if !v.Predecessor.Zero() {
			obj["predecessor"] = ir.IRInt(addrOf(v.Predecessor))
		}
		subs := make(ir.IRArray, 0, len(v.Subentries))
		for _, e := range v.Subentries {
			subs = append(subs, ir.IRObject{
				"question":  ir.IRInt(addrOf(e.Question)),
				"answer":    ir.IRInt(addrOf(e.Answer)),
				"workspace": ir.IRInt(addrOf(e.Workspace)),
			})
		}
		obj["subentries"] = subs
		return obj, nil
	default:
		return nil, fmt.Errorf("store: unsupported hypertext type %T", h)
	}
}

// decodeContent is encodeContent's inverse, given a way to turn a
// persisted integer back into an Address.
func decodeContent(addrFrom func(int64) address.Address, data string) (hypertext.Hypertext, error) {
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("store: decode content: %w", err)
	}

	typ, _ := obj["type"].(ir.IRString)
	switch string(typ) {
	case "raw":
		arr, _ := obj["chunks"].(ir.IRArray)
		chunks := make([]hypertext.Chunk, 0, len(arr))
		for _, item := range arr {
			chunkObj, ok := item.(ir.IRObject)
			if !ok {
				return nil, fmt.Errorf("store: malformed raw chunk")
			}
			if n, ok := chunkObj["addr"].(ir.IRInt); ok {
				chunks = append(chunks, hypertext.Ref(addrFrom(int64(n))))
				continue
			}
			if s, ok := chunkObj["text"].(ir.IRString); ok {
				chunks = append(chunks, hypertext.Text(string(s)))
				continue
			}
			return nil, fmt.Errorf("store: raw chunk has neither addr nor text")
		}
		return hypertext.NewRaw(chunks...), nil
	case "workspace":
		question, err := requireIRInt(obj, "question")
		if err != nil {
			return nil, err
		}
		scratchpad, err := requireIRInt(obj, "scratchpad")
		if err != nil {
			return nil, err
		}
		var predecessor address.Address
		if n, ok := obj["predecessor"].(ir.IRInt); ok {
			predecessor = addrFrom(int64(n))
		}
		arr, _ := obj["subentries"].(ir.IRArray)
		subs := make([]workspace.SubEntry, 0, len(arr))
		for _, item := range arr {
			subObj, ok := item.(ir.IRObject)
			if !ok {
				return nil, fmt.Errorf("store: malformed subentry")
			}
			q, err := requireIRInt(subObj, "question")
			if err != nil {
				return nil, err
			}
			a, err := requireIRInt(subObj, "answer")
			if err != nil {
				return nil, err
			}
			w, err := requireIRInt(subObj, "workspace")
			if err != nil {
				return nil, err
			}
			subs = append(subs, workspace.SubEntry{
				Question:  addrFrom(q),
				Answer:    addrFrom(a),
				Workspace: addrFrom(w),
			})
		}
		return workspace.New(predecessor, addrFrom(question), addrFrom(scratchpad), subs), nil
	default:
		return nil, fmt.Errorf("store: unknown content type %q", typ)
	}
}

func requireIRInt(obj ir.IRObject, key string) (int64, error) {
	n, ok := obj[key].(ir.IRInt)
	if !ok {
		return 0, fmt.Errorf("store: missing or malformed field %q", key)
	}
	return int64(n), nil
}
