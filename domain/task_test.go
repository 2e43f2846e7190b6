package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func docKeys(doc bson.D) []string {
	keys := make([]string, len(doc))
	for i, e := range doc {
		keys[i] = e.Key
	}
	return keys
}

func lookup(doc bson.D, key string) (any, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func TestTaskInputCreateDocumentCoercesTimestamp(t *testing.T) {
	var in TaskInput
	body := `{"user":"a@x.com","category":"todo","title":"T1","priority":2,"timestamp":"2024-01-01","_id":"ignored"}`
	if err := sonic.Unmarshal([]byte(body), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	doc := in.CreateDocument()
	if got := strings.Join(docKeys(doc), ","); got != "user,category,priority,title,timestamp" {
		t.Fatalf("unexpected document keys: %s", got)
	}
	ts, _ := lookup(doc, "timestamp")
	tsp, ok := ts.(*time.Time)
	if !ok || tsp == nil || !tsp.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp: %#v", ts)
	}
	if v, _ := lookup(doc, "priority"); v != int32(2) {
		t.Fatalf("expected whole numbers to be stored as int32, got %#v", v)
	}
}

func TestTaskInputCreateDocumentInvalidTimestampIsNull(t *testing.T) {
	var in TaskInput
	if err := sonic.Unmarshal([]byte(`{"title":"no date"}`), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	ts, ok := lookup(in.CreateDocument(), "timestamp")
	if !ok {
		t.Fatal("expected timestamp to be written")
	}
	if tsp, _ := ts.(*time.Time); tsp != nil {
		t.Fatalf("expected null timestamp, got %v", tsp)
	}

	raw, err := bson.Marshal(in.CreateDocument())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := bson.Raw(raw).Lookup("timestamp").Type; got != bson.TypeNull {
		t.Fatalf("expected BSON null timestamp, got %v", got)
	}
}

func TestTaskInputSetDocumentOnlyCarriesPresentFields(t *testing.T) {
	var in TaskInput
	if err := sonic.Unmarshal([]byte(`{"title":"x","modified":"2024-02-02T08:00:00Z"}`), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	doc := in.SetDocument()
	if got := strings.Join(docKeys(doc), ","); got != "title,modified" {
		t.Fatalf("unexpected $set keys: %s", got)
	}
	if in.Empty() {
		t.Fatal("payload with attributes reported empty")
	}
}

func TestTaskInputSetDocumentWritesExplicitNulls(t *testing.T) {
	var in TaskInput
	if err := in.UnmarshalJSON([]byte(`{"user":null,"timestamp":null,"title":"x"}`)); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if in.HasUser || !in.ReassignsOwner() {
		t.Fatalf("expected null user to clear the owner, got %+v", in)
	}
	doc := in.SetDocument()
	if got := strings.Join(docKeys(doc), ","); got != "timestamp,title,user,modified" {
		t.Fatalf("unexpected $set keys: %s", got)
	}
	for _, key := range []string{"user", "timestamp"} {
		v, _ := lookup(doc, key)
		if v == nil {
			continue
		}
		if tp, ok := v.(*time.Time); !ok || tp != nil {
			t.Fatalf("expected %s to be written as null, got %#v", key, v)
		}
	}

	var untouched TaskInput
	if err := untouched.UnmarshalJSON([]byte(`{"title":"x"}`)); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if untouched.ReassignsOwner() {
		t.Fatal("payload without user must not reassign the task")
	}
}

func TestTaskInputEmpty(t *testing.T) {
	for _, body := range []string{`{}`, `null`} {
		var in TaskInput
		if err := in.UnmarshalJSON([]byte(body)); err != nil {
			t.Fatalf("unmarshal %s: %v", body, err)
		}
		if !in.Empty() {
			t.Fatalf("expected %s to be empty", body)
		}
	}
}

func TestTaskInputRejectsNonStringCategory(t *testing.T) {
	var in TaskInput
	err := in.UnmarshalJSON([]byte(`{"category":3}`))
	var fieldErr *FieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("expected field error, got %v", err)
	}
	if fieldErr.Field != "category" {
		t.Fatalf("unexpected field: %s", fieldErr.Field)
	}
}

func TestTaskMarshalIsFlat(t *testing.T) {
	id := primitive.NewObjectID()
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	task := Task{
		ID:         id,
		User:       "a@x.com",
		Category:   "todo",
		Timestamp:  &ts,
		Attributes: map[string]any{"title": "T1"},
	}

	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}
	for _, want := range []string{`"_id":"` + id.Hex() + `"`, `"title":"T1"`, `"category":"todo"`, `"timestamp":"2024-01-01T00:00:00Z"`} {
		if !strings.Contains(string(payload), want) {
			t.Fatalf("expected %s in %s", want, payload)
		}
	}
	if strings.Contains(string(payload), "Attributes") || strings.Contains(string(payload), "modified") {
		t.Fatalf("unexpected keys in %s", payload)
	}

	var back Task
	if err := sonic.Unmarshal(payload, &back); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if back.ID != id || back.User != task.User || back.Category != task.Category || !back.Timestamp.Equal(ts) {
		t.Fatalf("unexpected decoded task: %#v", back)
	}
	if back.Attributes["title"] != "T1" {
		t.Fatalf("unexpected attributes: %#v", back.Attributes)
	}
}

func TestTaskBSONKeepsUnknownAttributes(t *testing.T) {
	raw, err := bson.Marshal(bson.D{
		{Key: "_id", Value: primitive.NewObjectID()},
		{Key: "user", Value: "a@x.com"},
		{Key: "category", Value: "done"},
		{Key: "title", Value: "T1"},
		{Key: "timestamp", Value: nil},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var task Task
	if err := bson.Unmarshal(raw, &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if task.Category != "done" || task.User != "a@x.com" {
		t.Fatalf("unexpected typed fields: %#v", task)
	}
	if task.Timestamp != nil || !task.HasTimestamp {
		t.Fatalf("expected stored null timestamp, got %v (present %v)", task.Timestamp, task.HasTimestamp)
	}
	if task.HasModified {
		t.Fatal("modified is not in the document")
	}
	if task.Attributes["title"] != "T1" {
		t.Fatalf("expected title in attributes, got %#v", task.Attributes)
	}
}

func TestTaskStoredNullDateRendersNull(t *testing.T) {
	raw, err := bson.Marshal(bson.D{
		{Key: "_id", Value: primitive.NewObjectID()},
		{Key: "category", Value: "todo"},
		{Key: "timestamp", Value: nil},
		{Key: "modified", Value: nil},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var task Task
	if err := bson.Unmarshal(raw, &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	payload, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	for _, want := range []string{`"timestamp":null`, `"modified":null`} {
		if !strings.Contains(string(payload), want) {
			t.Fatalf("expected %s in %s", want, payload)
		}
	}

	// The BSON round trip used by the listing cache keeps the null dates.
	again, err := bson.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}
	if got := bson.Raw(again).Lookup("timestamp").Type; got != bson.TypeNull {
		t.Fatalf("expected BSON null timestamp, got %v", got)
	}
	var back Task
	if err := bson.Unmarshal(again, &back); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if !back.HasTimestamp || !back.HasModified {
		t.Fatalf("expected null dates to survive, got %#v", back)
	}

	var fromJSON Task
	if err := sonic.Unmarshal(payload, &fromJSON); err != nil {
		t.Fatalf("unmarshal json: %v", err)
	}
	if !fromJSON.HasTimestamp || fromJSON.Timestamp != nil {
		t.Fatalf("expected null timestamp from json, got %#v", fromJSON)
	}
}

func TestUserJSON(t *testing.T) {
	var u User
	if err := sonic.Unmarshal([]byte(`{"email":"a@x.com","name":"A","photo":"p.png"}`), &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if u.Email != "a@x.com" || u.Attributes["name"] != "A" || !u.ID.IsZero() {
		t.Fatalf("unexpected user: %#v", u)
	}

	var bad User
	if err := bad.UnmarshalJSON([]byte(`{"email":["a"]}`)); err == nil {
		t.Fatal("expected error for non-string email")
	}
}
