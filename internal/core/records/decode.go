package records

import (
	"encoding/json"
	"fmt"
)

// Decode validates a raw backend payload into the closed variant type for its
// collection. The backend sends open JSON; everything past this boundary
// operates on statically-known shapes.
func Decode(collection string, raw json.RawMessage) (Record, error) {
	var rec Record
	switch collection {
	case CollectionPosts:
		rec = &Post{}
	case CollectionComments:
		rec = &Comment{}
	case CollectionVotes:
		rec = &Vote{}
	case CollectionBlocks:
		rec = &Block{}
	case CollectionBookmarks:
		rec = &Bookmark{}
	case CollectionPollVotes:
		rec = &PollVote{}
	default:
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("failed to decode %s record: %w", collection, err)
	}
	if rec.RecordID() == "" {
		return nil, fmt.Errorf("%s record missing id", collection)
	}
	if err := validate(collection, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// DecodeAll decodes a page of raw payloads, skipping records that fail
// validation. Eventual consistency makes malformed or partially-indexed
// records routine, so a bad record degrades to a smaller page instead of
// failing the whole fetch.
func DecodeAll(collection string, raws []json.RawMessage) []Record {
	out := make([]Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := Decode(collection, raw)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// validate enforces per-variant field constraints beyond JSON well-formedness.
func validate(collection string, rec Record) error {
	switch r := rec.(type) {
	case *Vote:
		if r.Direction != VoteUp && r.Direction != VoteDown {
			return fmt.Errorf("vote %s has invalid direction %q", r.ID, r.Direction)
		}
		if r.TargetID == "" {
			return fmt.Errorf("vote %s missing target", r.ID)
		}
	case *Block:
		if r.BlockerID == "" || r.BlockedID == "" {
			return fmt.Errorf("block %s missing endpoint", r.ID)
		}
	case *Bookmark:
		if r.UserID == "" || r.PostID == "" {
			return fmt.Errorf("bookmark %s missing user or post", r.ID)
		}
	case *PollVote:
		if r.PollID == "" || r.UserID == "" {
			return fmt.Errorf("poll vote %s missing poll or user", r.ID)
		}
		if r.OptionIndex < 0 {
			return fmt.Errorf("poll vote %s has negative option index", r.ID)
		}
	case *Comment:
		if r.PostID == "" {
			return fmt.Errorf("comment %s missing post", r.ID)
		}
	}
	return nil
}

// AssignID rewrites a record's id in place. Used by stores when minting a
// server id for an inserted record that arrived under a temp id.
func AssignID(rec Record, id string) error {
	switch r := rec.(type) {
	case *Post:
		r.ID = id
	case *Comment:
		r.ID = id
	case *Vote:
		r.ID = id
	case *Block:
		r.ID = id
	case *Bookmark:
		r.ID = id
	case *PollVote:
		r.ID = id
	default:
		return fmt.Errorf("unknown record type %T", rec)
	}
	return nil
}

// Encode marshals a record for the wire. The inverse of Decode.
func Encode(rec Record) (json.RawMessage, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %s: %w", rec.RecordID(), err)
	}
	return raw, nil
}
