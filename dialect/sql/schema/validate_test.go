package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relplan/schema/field"
)

func TestValidateTree(t *testing.T) {
	root := build(t, "users",
		field.String("name"),
		field.List("tags", field.String("")),
	)
	require.NoError(t, Propagate(root))
	r := ValidateTree(root)
	assert.False(t, r.HasErrors())
	assert.True(t, r.HasWarnings())
	assert.NoError(t, r.Err())
	assert.Contains(t, r.String(), "users: table has no primary key")
	assert.Contains(t, r.String(), `reference to "users"."name" is not enforced`)

	bad := NewTable("bad")
	bad.AddColumn(&Column{Name: "a", Type: field.TypeInt32}, 0)
	bad.AddColumn(&Column{Name: "a", Type: field.TypeInt32}, 1)
	bad.AddColumn(&Column{Name: "r", Type: field.TypeInt32, References: &Reference{Table: "missing", Column: "id"}}, 2)
	r = ValidateTree(bad)
	require.Len(t, r.Errors, 2)
	assert.Equal(t, "bad.a: duplicate column name", r.Errors[0].Error())
	assert.Equal(t, `bad.r: foreign key references non-existent table "missing"`, r.Errors[1].Error())
	assert.Error(t, r.Err())
	assert.Contains(t, r.String(), "Errors:")
}

func TestValidateDiff(t *testing.T) {
	current := build(t, "users",
		field.Int64("id").PrimaryKey(),
		field.String("name").Size(100),
		field.String("email"),
	).Tables()

	t.Run("NoChanges", func(t *testing.T) {
		r := ValidateDiff(current, current)
		assert.False(t, r.HasErrors())
		assert.False(t, r.HasWarnings())
		assert.Equal(t, "No issues found", r.String())
	})

	t.Run("DropColumn", func(t *testing.T) {
		desired := build(t, "users",
			field.Int64("id").PrimaryKey(),
			field.String("name").Size(100),
		).Tables()
		r := ValidateDiff(current, desired)
		require.Len(t, r.Errors, 1)
		assert.True(t, r.HasBreakingChanges())
		assert.Equal(t, "users.email: column will be dropped", r.Errors[0].Error())

		r = ValidateDiff(current, desired, AllowDropColumn())
		assert.False(t, r.HasErrors())
		assert.Len(t, r.Warnings, 1)
	})

	t.Run("DropTable", func(t *testing.T) {
		r := ValidateDiff(current, nil)
		require.Len(t, r.Errors, 1)
		r = ValidateDiff(current, nil, AllowDropTable())
		assert.False(t, r.HasErrors())
	})

	t.Run("ColumnChanges", func(t *testing.T) {
		desired := build(t, "users",
			field.Int64("id").PrimaryKey(),
			field.String("name").Size(50),
			field.String("email").NotNull().Unique(),
			field.Int32("age").NotNull(),
		).Tables()
		r := ValidateDiff(current, desired)
		require.Len(t, r.Errors, 1)
		assert.Contains(t, r.Errors[0].Error(), "NULL to NOT NULL")
		assert.Len(t, r.Warnings, 3)

		r = ValidateDiff(current, desired, AllowNullToNotNull())
		assert.False(t, r.HasErrors())
		assert.Len(t, r.Warnings, 4)
	})

	t.Run("TypeChange", func(t *testing.T) {
		desired := build(t, "users",
			field.Int64("id").PrimaryKey(),
			field.String("name"),
			field.Bytes("email"),
		).Tables()
		r := ValidateDiff(current, desired)
		assert.False(t, r.HasErrors())
		require.Len(t, r.Warnings, 2)
		msgs := []string{r.Warnings[0].Message, r.Warnings[1].Message}
		assert.Contains(t, msgs, "column type changing from string(100) to string")
		assert.Contains(t, msgs, "column type changing from string to bytes")
	})
}

func TestValidateDiff_Keys(t *testing.T) {
	current := NewTable("posts")
	current.AddColumn(&Column{Name: "id", Type: field.TypeInt64, PrimaryKey: true, NotNull: true}, 0)
	current.AddColumn(&Column{Name: "author", Type: field.TypeInt64, References: &Reference{Table: "users", Column: "id", Enforced: true}}, 1)

	desired := NewTable("posts")
	desired.AddColumn(&Column{Name: "id", Type: field.TypeInt64, NotNull: true}, 0)
	desired.AddColumn(&Column{Name: "slug", Type: field.TypeString, PrimaryKey: true, NotNull: true, Default: ""}, 1)
	desired.AddColumn(&Column{Name: "author", Type: field.TypeInt64, References: &Reference{Table: "members", Column: "id", Enforced: true}}, 2)

	r := ValidateDiff([]*Table{current}, []*Table{desired}, AllowDropColumn(), AllowNullToNotNull())
	require.Len(t, r.Errors, 2)
	assert.Equal(t, `posts.author: reference changing from "users"."id" to "members"."id"`, r.Errors[0].Error())
	assert.Equal(t, "posts: primary key changing from (id) to (slug)", r.Errors[1].Error())
	assert.True(t, r.HasBreakingChanges())
	assert.Empty(t, r.Warnings)
}
