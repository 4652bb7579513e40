package utils

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
)

func TestExtractHelpers(t *testing.T) {
	item := map[string]types.AttributeValue{
		"userId":  &types.AttributeValueMemberS{Value: "u1"},
		"age":     &types.AttributeValueMemberN{Value: "31"},
		"friends": &types.AttributeValueMemberSS{Value: []string{"u2", "u3"}},
		"blocked": &types.AttributeValueMemberL{Value: []types.AttributeValue{
			&types.AttributeValueMemberS{Value: "u4"},
			&types.AttributeValueMemberN{Value: "5"},
		}},
	}

	assert.Equal(t, "u1", ExtractString(item, "userId"))
	assert.Equal(t, "", ExtractString(item, "age"))
	assert.Equal(t, []string{"u2", "u3"}, ExtractStringSet(item, "friends"))
	assert.Equal(t, []string{"u4"}, ExtractStringSet(item, "blocked"))
	assert.Nil(t, ExtractStringSet(item, "missing"))
}
