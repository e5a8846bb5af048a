package redis

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/PandaDev0069/tuiz-backend-sub000/internal/app"
	"github.com/PandaDev0069/tuiz-backend-sub000/internal/domain"
)

// QuestionCache fronts a GameStore with Redis for the hot scoring reads.
// Every answer submission needs the question's correct choice, points, and
// window, plus the quiz toggles, so those are cached as hashes:
//
//	HSET question:{questionID}:scoring answer {id} points {n} time {sec} quiz {id}
//	HSET quiz:{quizID}:settings time_bonus {0|1} streak_bonus {0|1}
//
// Games and players are pass-through; they change during play.
type QuestionCache struct {
	client *redis.Client
	store  app.GameStore
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, store app.GameStore, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		store:  store,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) GetGame(ctx context.Context, gameID string) (domain.Game, error) {
	return c.store.GetGame(ctx, gameID)
}

func (c *QuestionCache) GetPlayer(ctx context.Context, playerID string) (domain.Player, error) {
	return c.store.GetPlayer(ctx, playerID)
}

func (c *QuestionCache) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	key := c.questionKey(questionID)

	fields, err := c.client.HGetAll(ctx, key).Result()
	if err == nil && len(fields) > 0 {
		return questionFromHash(questionID, fields), nil
	}

	result, err, _ := c.sf.Do("question:"+questionID, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		fields, err := c.client.HGetAll(ctx, key).Result()
		if err == nil && len(fields) > 0 {
			return questionFromHash(questionID, fields), nil
		}

		question, err := c.store.GetQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}

		pipe := c.client.Pipeline()
		pipe.HSet(ctx, key,
			"answer", question.CorrectAnswerID,
			"points", question.BasePoints,
			"time", question.TimeAllowed,
			"quiz", question.QuizID,
		)
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return question, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (c *QuestionCache) GetPlaySettings(ctx context.Context, quizID string) (domain.PlaySettings, error) {
	key := c.settingsKey(quizID)

	fields, err := c.client.HGetAll(ctx, key).Result()
	if err == nil && len(fields) > 0 {
		return settingsFromHash(fields), nil
	}

	result, err, _ := c.sf.Do("settings:"+quizID, func() (interface{}, error) {
		fields, err := c.client.HGetAll(ctx, key).Result()
		if err == nil && len(fields) > 0 {
			return settingsFromHash(fields), nil
		}

		settings, err := c.store.GetPlaySettings(ctx, quizID)
		if err != nil {
			return domain.PlaySettings{}, err
		}

		pipe := c.client.Pipeline()
		pipe.HSet(ctx, key,
			"time_bonus", boolField(settings.TimeBonus),
			"streak_bonus", boolField(settings.StreakBonus),
		)
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return settings, nil
	})
	if err != nil {
		return domain.PlaySettings{}, err
	}
	return result.(domain.PlaySettings), nil
}

func (c *QuestionCache) questionKey(questionID string) string {
	return "question:" + questionID + ":scoring"
}

func (c *QuestionCache) settingsKey(quizID string) string {
	return "quiz:" + quizID + ":settings"
}

func questionFromHash(questionID string, fields map[string]string) domain.Question {
	points, _ := strconv.Atoi(fields["points"])
	allowed, _ := strconv.ParseFloat(fields["time"], 64)
	return domain.Question{
		ID:              questionID,
		QuizID:          fields["quiz"],
		BasePoints:      points,
		TimeAllowed:     allowed,
		CorrectAnswerID: fields["answer"],
	}
}

func settingsFromHash(fields map[string]string) domain.PlaySettings {
	return domain.PlaySettings{
		TimeBonus:   fields["time_bonus"] == "1",
		StreakBonus: fields["streak_bonus"] == "1",
	}
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
