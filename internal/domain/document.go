package domain

import (
	"encoding/json"
	"fmt"
)

// Document is a stored JSON document keyed by top-level field name.
type Document map[string]json.RawMessage

// EncodeRoom encodes every top-level field of the room.
func EncodeRoom(room Room) (Document, error) {
	if room.Players == nil {
		room.Players = []Player{}
	}
	data, err := json.Marshal(room)
	if err != nil {
		return nil, fmt.Errorf("encode room: %w", err)
	}
	doc := Document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("encode room: %w", err)
	}
	return doc, nil
}

// EncodeFields encodes only the named fields, producing a merge patch.
func EncodeFields(room Room, fields ...Field) (Document, error) {
	full, err := EncodeRoom(room)
	if err != nil {
		return nil, err
	}
	patch := make(Document, len(fields))
	for _, f := range fields {
		raw, ok := full[string(f)]
		if !ok {
			return nil, fmt.Errorf("encode room: unknown field %q", f)
		}
		patch[string(f)] = raw
	}
	return patch, nil
}

// DecodeRoom decodes and validates a room document.
func DecodeRoom(id string, doc Document) (Room, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return Room{}, fmt.Errorf("%w: %v", ErrInvalidRoom, err)
	}
	var room Room
	if err := json.Unmarshal(data, &room); err != nil {
		return Room{}, fmt.Errorf("%w: %v", ErrInvalidRoom, err)
	}
	room.ID = id
	if err := room.Validate(); err != nil {
		return Room{}, err
	}
	return room, nil
}

// Clone copies the document map; raw values are shared.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Merge applies patch over d at top-level granularity.
func (d Document) Merge(patch Document) Document {
	out := d.Clone()
	if out == nil {
		out = Document{}
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
