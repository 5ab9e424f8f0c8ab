package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hrm8/assistant/internal/actor"
)

func TestSetActor_and_Actor(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, Actor(ctx))

	casey := actor.NewConsultant("c1", "casey@hrm8.test", "c1", "r1")
	ctx2 := SetActor(ctx, casey)
	assert.Same(t, casey, Actor(ctx2))
	assert.Nil(t, Actor(ctx))

	grace := actor.NewHRM8User("u-global", "grace@hrm8.test", "GLOBAL_ADMIN", "", nil)
	ctx3 := SetActor(ctx2, grace)
	assert.Same(t, grace, Actor(ctx3))
	assert.Same(t, casey, Actor(ctx2))
}
