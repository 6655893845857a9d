package consumer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConsumer(t *testing.T) {
	c, err := NewConsumer("web01.acme.example", TypeSystem, "acme", "admin")
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID())
	_, err = uuid.Parse(c.UUID())
	assert.NoError(t, err)
	assert.Equal(t, "web01.acme.example", c.Name())
	assert.True(t, c.IsType(TypeSystem))
	assert.False(t, c.IsType(TypePerson))
	assert.Equal(t, "acme", c.OwnerKey())
}

func TestNewConsumerValidation(t *testing.T) {
	_, err := NewConsumer("", TypeSystem, "acme", "admin")
	assert.Error(t, err)

	_, err = NewConsumer("web01", "", "acme", "admin")
	assert.Error(t, err)

	_, err = NewConsumer("web01", TypeSystem, "", "admin")
	assert.Error(t, err)
}

func TestConsumerFacts(t *testing.T) {
	c, err := NewConsumer("web01", TypeSystem, "acme", "admin")
	require.NoError(t, err)

	c.SetFact("cpu.cpu_socket(s)", "2")
	v, ok := c.Fact("cpu.cpu_socket(s)")
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	// Facts returns a copy.
	facts := c.Facts()
	facts["cpu.cpu_socket(s)"] = "8"
	v, _ = c.Fact("cpu.cpu_socket(s)")
	assert.Equal(t, "2", v)

	c.ReplaceFacts(map[string]string{"virt.is_guest": "true"})
	_, ok = c.Fact("cpu.cpu_socket(s)")
	assert.False(t, ok)
	v, _ = c.Fact("virt.is_guest")
	assert.Equal(t, "true", v)
}

func TestConsumerRename(t *testing.T) {
	c, err := NewConsumer("web01", TypeSystem, "acme", "admin")
	require.NoError(t, err)

	require.NoError(t, c.Rename("web02"))
	assert.Equal(t, "web02", c.Name())
	assert.Error(t, c.Rename(""))
}

func TestReconstruct(t *testing.T) {
	c, err := Reconstruct(ReconstructParams{
		ID:        "cons_q1",
		UUID:      uuid.NewString(),
		Name:      "web01",
		TypeLabel: TypeSystem,
		OwnerKey:  "acme",
	})
	require.NoError(t, err)
	assert.Equal(t, "cons_q1", c.ID())
	assert.NotNil(t, c.Facts())

	_, err = Reconstruct(ReconstructParams{UUID: uuid.NewString()})
	assert.Error(t, err)

	_, err = Reconstruct(ReconstructParams{ID: "cons_q1"})
	assert.Error(t, err)
}
