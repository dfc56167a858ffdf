package nerdgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name  string
		query EntityQuery
		want  string
	}{
		{
			name:  "raw query wins",
			query: EntityQuery{Query: "type = 'HOST'", Name: "ignored"},
			want:  "type = 'HOST'",
		},
		{
			name: "all filters",
			query: EntityQuery{
				Domain:    []string{"INFRA"},
				Type:      []string{"HOST", "AWSEC2INSTANCE"},
				Name:      "web%",
				AccountId: 12345,
				Tags: []Tag{
					{Key: "environment", Values: []string{"production"}},
					{Key: "team", Values: []string{"a", "b"}},
				},
			},
			want: "domain IN ('INFRA') AND type IN ('HOST','AWSEC2INSTANCE') AND " +
				"name LIKE 'web%' AND tags.`accountId` = 12345 AND " +
				"tags.`environment` IN ('production') AND tags.`team` IN ('a','b')",
		},
		{
			name: "quotes are escaped",
			query: EntityQuery{
				Type: []string{"HOST"},
				Name: "o'brien%",
				Tags: []Tag{
					{Key: "own`er", Values: []string{`it's`, `c:\temp`}},
				},
			},
			want: `type IN ('HOST') AND name LIKE 'o\'brien%' AND ` +
				"tags.`owner` IN ('it\\'s','c:\\\\temp')",
		},
		{
			name:  "empty",
			query: EntityQuery{},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildQuery(&tt.query))
		})
	}
}
