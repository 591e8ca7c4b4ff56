package repositories

import (
	"context"
	"time"

	"carebow/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SafetyRepository struct {
	collection *mongo.Collection
}

func NewSafetyRepository(db *mongo.Database) *SafetyRepository {
	return &SafetyRepository{
		collection: db.Collection("safety_state"),
	}
}

// Load returns the user's safety state, falling back to the default state when
// no document exists yet. First-time users are not an error.
func (sr *SafetyRepository) Load(ctx context.Context, userID string) (*models.SafetyState, error) {
	var state models.SafetyState
	err := sr.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&state)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.NewSafetyState(userID), nil
		}
		return nil, err
	}

	return &state, nil
}

// Save upserts the user's safety state document.
func (sr *SafetyRepository) Save(ctx context.Context, state *models.SafetyState) error {
	state.UpdatedAt = time.Now()

	opts := options.Replace().SetUpsert(true)
	_, err := sr.collection.ReplaceOne(ctx, bson.M{"_id": state.UserID}, state, opts)
	return err
}

// ListCheckInEnabled returns every state with the daily check-in enabled. The
// deadline worker scans these for missed check-ins.
func (sr *SafetyRepository) ListCheckInEnabled(ctx context.Context) ([]models.SafetyState, error) {
	cursor, err := sr.collection.Find(ctx, bson.M{"settings.dailyCheckInEnabled": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var states []models.SafetyState
	if err := cursor.All(ctx, &states); err != nil {
		return nil, err
	}

	return states, nil
}
