package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// CategoryList holds a product's categories. Older catalog documents store a
// single category string, newer ones an array; both decode into a list.
type CategoryList []string

func NewCategoryList(values ...string) CategoryList {
	out := make(CategoryList, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func (c *CategoryList) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bsontype.Null, bsontype.Undefined:
		*c = nil
		return nil
	case bsontype.Array:
		var values []string
		if err := bson.UnmarshalValue(t, data, &values); err != nil {
			return err
		}
		*c = NewCategoryList(values...)
		return nil
	case bsontype.String:
		var value string
		if err := bson.UnmarshalValue(t, data, &value); err != nil {
			return err
		}
		*c = NewCategoryList(value)
		return nil
	default:
		return fmt.Errorf("cannot decode %s into CategoryList", t)
	}
}

// MarshalBSONValue always writes an array.
func (c CategoryList) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if c == nil {
		return bson.MarshalValue([]string{})
	}
	return bson.MarshalValue([]string(c))
}

// UnmarshalJSON accepts a string or an array of strings.
func (c *CategoryList) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err == nil {
		*c = NewCategoryList(values...)
		return nil
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("category must be a string or a list of strings")
	}
	*c = NewCategoryList(value)
	return nil
}
