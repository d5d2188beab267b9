package firebase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oshokin/trackguard/internal/feed"
)

// tree is the locally mirrored content of the watched node.
type tree struct {
	root map[string]any
}

// segments splits a database path into its keys.
func segments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}

	return strings.Split(trimmed, "/")
}

// put replaces the value at path; a nil value deletes it.
func (t *tree) put(path string, value any) {
	keys := segments(path)
	if len(keys) == 0 {
		t.root = asObject(value)
		return
	}

	if t.root == nil {
		t.root = make(map[string]any)
	}

	setPath(t.root, keys, value)
}

// patch merges the children of value into the object at path.
func (t *tree) patch(path string, value any) {
	children := asObject(value)
	for key, child := range children {
		t.put(strings.TrimSuffix(path, "/")+"/"+key, child)
	}
}

// snapshot renders the mirrored node as a feed snapshot.
func (t *tree) snapshot() (feed.Snapshot, error) {
	snapshot := make(feed.Snapshot, len(t.root))

	for id, value := range t.root {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode record %s: %w", id, err)
		}

		snapshot[id] = raw
	}

	return snapshot, nil
}

// setPath sets value at keys below node, creating objects on the way.
func setPath(node map[string]any, keys []string, value any) {
	key := keys[0]

	if len(keys) == 1 {
		if value == nil {
			delete(node, key)
		} else {
			node[key] = value
		}

		return
	}

	child, ok := node[key].(map[string]any)
	if !ok {
		if value == nil {
			return
		}

		child = make(map[string]any)
		node[key] = child
	}

	setPath(child, keys[1:], value)

	if len(child) == 0 {
		delete(node, key)
	}
}

// asObject returns value as an object, or an empty object for anything else.
func asObject(value any) map[string]any {
	if object, ok := value.(map[string]any); ok {
		return object
	}

	return make(map[string]any)
}
