package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	errTooDeep  = errors.New("json nesting exceeds depth limit")
	errTooLarge = errors.New("json exceeds node limit")
)

type nodeKind int

const (
	kindScalar nodeKind = iota
	kindString
	kindObject
	kindArray
)

// node is a decoded JSON value that keeps object keys in document order.
type node struct {
	kind  nodeKind
	str   string
	keys  []string
	items []*node
}

// get returns the first member named key of an object node.
func (n *node) get(key string) *node {
	if n == nil || n.kind != kindObject {
		return nil
	}
	for i, k := range n.keys {
		if k == key {
			return n.items[i]
		}
	}
	return nil
}

// treeDecoder streams tokens so the depth and node limits apply while
// decoding rather than after a full unmarshal.
type treeDecoder struct {
	dec      *json.Decoder
	maxDepth int
	maxNodes int
	nodes    int
}

func decodeTree(data []byte, maxDepth, maxNodes int) (*node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	d := &treeDecoder{dec: dec, maxDepth: maxDepth, maxNodes: maxNodes}
	root, err := d.value(0)
	if err != nil {
		return nil, err
	}
	return root, nil
}

func (d *treeDecoder) value(depth int) (*node, error) {
	tok, err := d.dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	d.nodes++
	if d.maxNodes > 0 && d.nodes > d.maxNodes {
		return nil, errTooLarge
	}
	switch t := tok.(type) {
	case json.Delim:
		if d.maxDepth > 0 && depth >= d.maxDepth {
			return nil, errTooDeep
		}
		switch t {
		case '{':
			return d.object(depth)
		case '[':
			return d.array(depth)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return &node{kind: kindString, str: t}, nil
	default:
		return &node{kind: kindScalar}, nil
	}
}

func (d *treeDecoder) object(depth int) (*node, error) {
	n := &node{kind: kindObject}
	for d.dec.More() {
		tok, err := d.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key token %v", tok)
		}
		child, err := d.value(depth + 1)
		if err != nil {
			return nil, err
		}
		n.keys = append(n.keys, key)
		n.items = append(n.items, child)
	}
	if _, err := d.dec.Token(); err != nil {
		return nil, fmt.Errorf("close object: %w", err)
	}
	return n, nil
}

func (d *treeDecoder) array(depth int) (*node, error) {
	n := &node{kind: kindArray}
	for d.dec.More() {
		child, err := d.value(depth + 1)
		if err != nil {
			return nil, err
		}
		n.items = append(n.items, child)
	}
	if _, err := d.dec.Token(); err != nil {
		return nil, fmt.Errorf("close array: %w", err)
	}
	return n, nil
}
