package geo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestNearbyFilter(t *testing.T) {
	f := nearbyFilter(76.3, 10.0, 5000, []uint{1, 2})

	near := f["location"].(bson.M)["$nearSphere"].(bson.M)
	assert.Equal(t, NewPoint(76.3, 10.0), near["$geometry"])
	assert.Equal(t, 5000.0, near["$maxDistance"])
	assert.Equal(t, bson.M{"$nin": []uint{1, 2}}, f["user_id"])

	noExclude := nearbyFilter(0, 0, 1, nil)
	_, ok := noExclude["user_id"]
	assert.False(t, ok)
}

func TestValidCoordinates(t *testing.T) {
	assert.True(t, ValidCoordinates(-180, 90))
	assert.False(t, ValidCoordinates(181, 0))
	assert.False(t, ValidCoordinates(0, -91))
}

func TestStore_Mock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("upsert", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 0}))
		s := NewStore(mt.Coll)
		require.NoError(t, s.Upsert(context.Background(), 7, 76.3, 10.0))
	})

	mt.Run("nearby", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		first := mtest.CreateCursorResponse(1, ns, mtest.FirstBatch,
			bson.D{{Key: "user_id", Value: int64(3)}},
			bson.D{{Key: "user_id", Value: int64(9)}},
		)
		end := mtest.CreateCursorResponse(0, ns, mtest.NextBatch)
		mt.AddMockResponses(first, end)

		s := NewStore(mt.Coll)
		ids, err := s.Nearby(context.Background(), 76.3, 10.0, 50000, []uint{7}, 10)
		require.NoError(t, err)
		assert.Equal(t, []uint{3, 9}, ids)
	})

	mt.Run("get missing", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		s := NewStore(mt.Coll)
		loc, err := s.Get(context.Background(), 7)
		require.NoError(t, err)
		assert.Nil(t, loc)
	})
}
