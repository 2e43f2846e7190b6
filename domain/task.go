package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Task is a stored task document. The attributes the service reasons about
// are typed; everything else the client sent is kept in Attributes and
// written back untouched.
type Task struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	User       string             `bson:"user,omitempty"`
	Category   string             `bson:"category,omitempty"`
	Timestamp  *time.Time         `bson:"timestamp,omitempty"`
	Modified   *time.Time         `bson:"modified,omitempty"`
	Attributes map[string]any     `bson:",inline"`

	// HasTimestamp and HasModified are set when the document carries the
	// date field, even as null.
	HasTimestamp bool `bson:"-"`
	HasModified  bool `bson:"-"`
}

// taskDocument has the field layout of Task without its codec methods.
type taskDocument Task

// MarshalJSON renders the task as a single flat object, the same shape it
// has in the tasks collection.
func (t Task) MarshalJSON() ([]byte, error) {
	typed := make(map[string]any, 5)
	if !t.ID.IsZero() {
		typed["_id"] = t.ID
	}
	if t.User != "" {
		typed["user"] = t.User
	}
	if t.Category != "" {
		typed["category"] = t.Category
	}
	if t.Timestamp != nil || t.HasTimestamp {
		typed["timestamp"] = nullableTime(t.Timestamp)
	}
	if t.Modified != nil || t.HasModified {
		typed["modified"] = nullableTime(t.Modified)
	}
	return flatten(t.Attributes, typed)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (t *Task) UnmarshalJSON(data []byte) error {
	attrs, err := decodeObject(data)
	if err != nil {
		return err
	}
	out := Task{ID: takeObjectID(attrs, "_id")}
	if out.User, _, err = takeString(attrs, "user"); err != nil {
		return err
	}
	if out.Category, _, err = takeString(attrs, "category"); err != nil {
		return err
	}
	_, out.HasTimestamp = attrs["timestamp"]
	_, out.HasModified = attrs["modified"]
	out.Timestamp = takeTime(attrs, "timestamp")
	out.Modified = takeTime(attrs, "modified")
	if len(attrs) > 0 {
		out.Attributes = attrs
	}
	*t = out
	return nil
}

// MarshalBSON writes the task in its stored layout. Dates that were stored
// as null stay null.
func (t Task) MarshalBSON() ([]byte, error) {
	doc := make(bson.D, 0, len(t.Attributes)+5)
	if !t.ID.IsZero() {
		doc = append(doc, bson.E{Key: "_id", Value: t.ID})
	}
	if t.User != "" {
		doc = append(doc, bson.E{Key: "user", Value: t.User})
	}
	if t.Category != "" {
		doc = append(doc, bson.E{Key: "category", Value: t.Category})
	}
	if t.Timestamp != nil || t.HasTimestamp {
		doc = append(doc, bson.E{Key: "timestamp", Value: t.Timestamp})
	}
	if t.Modified != nil || t.HasModified {
		doc = append(doc, bson.E{Key: "modified", Value: t.Modified})
	}
	doc = appendAttributes(doc, t.Attributes)
	return bson.Marshal(doc)
}

// UnmarshalBSON decodes a stored task. Nested documents in attributes decode
// as maps so they render as JSON objects.
func (t *Task) UnmarshalBSON(data []byte) error {
	dec, err := bson.NewDecoder(bsonrw.NewBSONDocumentReader(data))
	if err != nil {
		return err
	}
	dec.DefaultDocumentM()
	var out taskDocument
	if err := dec.Decode(&out); err != nil {
		return err
	}
	raw := bson.Raw(data)
	_, tsErr := raw.LookupErr("timestamp")
	out.HasTimestamp = tsErr == nil
	_, modErr := raw.LookupErr("modified")
	out.HasModified = modErr == nil
	*t = Task(out)
	return nil
}

// TaskInput is a client supplied task payload used for creation and full
// updates. Only attributes present in the payload are written.
type TaskInput struct {
	User        string
	HasUser     bool
	Category    string
	HasCategory bool
	// Timestamp and Modified keep the raw client values; they are coerced
	// with ParseDate when the document is built.
	Timestamp    any
	HasTimestamp bool
	Modified     any
	// Attributes holds every other field. An explicit null user or category
	// is kept here so it is written as null.
	Attributes map[string]any

	empty bool
}

// UnmarshalJSON decodes a task payload. user and category must be strings
// when present; _id is ignored since it cannot be written.
func (in *TaskInput) UnmarshalJSON(data []byte) error {
	attrs, err := decodeObject(data)
	if err != nil {
		return err
	}
	out := TaskInput{empty: len(attrs) == 0}
	delete(attrs, "_id")
	nulls := nullKeys(attrs, "user", "category")
	if out.User, out.HasUser, err = takeString(attrs, "user"); err != nil {
		return err
	}
	if out.Category, out.HasCategory, err = takeString(attrs, "category"); err != nil {
		return err
	}
	for _, k := range nulls {
		attrs[k] = nil
	}
	out.Timestamp, out.HasTimestamp = attrs["timestamp"]
	delete(attrs, "timestamp")
	out.Modified = attrs["modified"]
	delete(attrs, "modified")
	out.Attributes = attrs
	*in = out
	return nil
}

// ReassignsOwner reports whether writing the payload changes the user field.
func (in TaskInput) ReassignsOwner() bool {
	if in.HasUser {
		return true
	}
	_, cleared := in.Attributes["user"]
	return cleared
}

// Empty reports whether the decoded payload had no attributes at all.
func (in TaskInput) Empty() bool {
	return in.empty
}

// CreateDocument builds the document inserted for a new task. timestamp is
// always written, as null when it could not be coerced to a date.
func (in TaskInput) CreateDocument() bson.D {
	doc := make(bson.D, 0, len(in.Attributes)+3)
	if in.HasUser {
		doc = append(doc, bson.E{Key: "user", Value: in.User})
	}
	if in.HasCategory {
		doc = append(doc, bson.E{Key: "category", Value: in.Category})
	}
	doc = appendAttributes(doc, in.Attributes)
	return append(doc, bson.E{Key: "timestamp", Value: ParseDate(in.Timestamp)})
}

// SetDocument builds the $set operand for a full update. Every attribute
// present in the payload overwrites the stored one, explicit nulls
// included; modified is always written, as null when it could not be
// coerced to a date.
func (in TaskInput) SetDocument() bson.D {
	doc := make(bson.D, 0, len(in.Attributes)+4)
	if in.HasUser {
		doc = append(doc, bson.E{Key: "user", Value: in.User})
	}
	if in.HasCategory {
		doc = append(doc, bson.E{Key: "category", Value: in.Category})
	}
	if in.HasTimestamp {
		doc = append(doc, bson.E{Key: "timestamp", Value: ParseDate(in.Timestamp)})
	}
	doc = appendAttributes(doc, in.Attributes)
	return append(doc, bson.E{Key: "modified", Value: ParseDate(in.Modified)})
}
