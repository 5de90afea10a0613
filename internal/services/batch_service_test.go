package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shroomify/server/internal/inference"
	"github.com/shroomify/server/internal/localstore"
	"github.com/shroomify/server/internal/models"
)

// gatedClassifier maps image payloads to canned results and blocks each
// classification until its release channel fires, so tests control arrival
// order.
type gatedClassifier struct {
	mu       sync.Mutex
	results  map[string]*inference.Result
	errs     map[string]error
	releases map[string]chan struct{}
}

func newGatedClassifier() *gatedClassifier {
	return &gatedClassifier{
		results:  make(map[string]*inference.Result),
		errs:     make(map[string]error),
		releases: make(map[string]chan struct{}),
	}
}

func (c *gatedClassifier) expect(image string, result *inference.Result, err error) chan struct{} {
	release := make(chan struct{})
	c.mu.Lock()
	c.results[image] = result
	c.errs[image] = err
	c.releases[image] = release
	c.mu.Unlock()
	return release
}

func (c *gatedClassifier) Classify(ctx context.Context, image []byte) (*inference.Result, error) {
	c.mu.Lock()
	release := c.releases[string(image)]
	result := c.results[string(image)]
	err := c.errs[string(image)]
	c.mu.Unlock()

	if release != nil {
		<-release
	}
	return result, err
}

type batchEnv struct {
	session *SessionService
	queue   *localstore.ScanStore
	repo    *fakeLogRepo
	batch   *BatchService
}

func newBatchEnv(t *testing.T, classifier Classifier) *batchEnv {
	t.Helper()

	sessionStore, err := localstore.NewSessionStore(t.TempDir())
	require.NoError(t, err)
	session := NewSessionService(sessionStore)

	queue, err := localstore.NewScanStore(t.TempDir())
	require.NoError(t, err)

	repo := newFakeLogRepo()
	syncService := NewSyncService(queue, repo, nil, nil)

	return &batchEnv{
		session: session,
		queue:   queue,
		repo:    repo,
		batch:   NewBatchService(session, classifier, queue, syncService, nil, nil),
	}
}

func loginTestUser(t *testing.T, session *SessionService) {
	t.Helper()
	user, err := models.NewUser("grower@example.com", "Pat Grower")
	require.NoError(t, err)
	_, err = session.Login(user)
	require.NoError(t, err)
}

func TestBatchEnqueueRejectedAnonymous(t *testing.T) {
	env := newBatchEnv(t, newGatedClassifier())

	_, err := env.batch.Enqueue([]byte("frame"))
	assert.ErrorIs(t, err, models.ErrBatchNotAllowed)
	assert.Equal(t, models.ModeIndividual, env.batch.Mode())
}

func TestBatchModeRequiresAuthentication(t *testing.T) {
	env := newBatchEnv(t, newGatedClassifier())

	assert.ErrorIs(t, env.batch.SetMode(models.ModeBatch), models.ErrBatchNotAllowed)

	loginTestUser(t, env.session)
	require.NoError(t, env.batch.SetMode(models.ModeBatch))
	assert.Equal(t, models.ModeBatch, env.batch.Mode())
}

func TestBatchAuthLossForcesIndividualMode(t *testing.T) {
	env := newBatchEnv(t, newGatedClassifier())
	loginTestUser(t, env.session)
	require.NoError(t, env.batch.SetMode(models.ModeBatch))

	env.session.Logout()

	assert.Equal(t, models.ModeIndividual, env.batch.Mode())
	state := env.batch.State(FilterAll)
	assert.Empty(t, state.Queued)
	assert.Empty(t, state.Healthy)
	assert.Empty(t, state.Contaminated)
}

func TestBatchOutOfOrderResolution(t *testing.T) {
	classifier := newGatedClassifier()
	release1 := classifier.expect("img-1", &inference.Result{Classification: 0, Confidence: 0.9, HasConfidence: true}, nil)
	release2 := classifier.expect("img-2", &inference.Result{Classification: 1, Confidence: 0.8, HasConfidence: true}, nil)
	release3 := classifier.expect("img-3", &inference.Result{Classification: 2, Confidence: 0.7, HasConfidence: true}, nil)

	env := newBatchEnv(t, classifier)
	loginTestUser(t, env.session)
	require.NoError(t, env.batch.SetMode(models.ModeBatch))

	item1, err := env.batch.Enqueue([]byte("img-1"))
	require.NoError(t, err)
	item2, err := env.batch.Enqueue([]byte("img-2"))
	require.NoError(t, err)
	item3, err := env.batch.Enqueue([]byte("img-3"))
	require.NoError(t, err)

	// Responses arrive out of enqueue order.
	close(release2)
	close(release1)
	close(release3)

	require.Eventually(t, func() bool {
		state := env.batch.State(FilterAll)
		return len(state.Healthy)+len(state.Contaminated) == 3
	}, 2*time.Second, 10*time.Millisecond)

	state := env.batch.State(FilterAll)
	require.Len(t, state.Healthy, 1)
	require.Len(t, state.Contaminated, 2)
	assert.Equal(t, item1.ID, state.Healthy[0].ItemID)

	contaminatedIDs := []string{state.Contaminated[0].ItemID, state.Contaminated[1].ItemID}
	assert.Contains(t, contaminatedIDs, item2.ID)
	assert.Contains(t, contaminatedIDs, item3.ID)
	assert.Empty(t, state.Queued)
}

func TestBatchFailedItemDoesNotBlockOthers(t *testing.T) {
	classifier := newGatedClassifier()
	releaseOK := classifier.expect("img-ok", &inference.Result{Classification: 0, Confidence: 0.9, HasConfidence: true}, nil)
	releaseBad := classifier.expect("img-bad", nil, errors.New("connection reset"))

	env := newBatchEnv(t, classifier)
	loginTestUser(t, env.session)

	_, err := env.batch.Enqueue([]byte("img-ok"))
	require.NoError(t, err)
	_, err = env.batch.Enqueue([]byte("img-bad"))
	require.NoError(t, err)

	close(releaseBad)
	close(releaseOK)

	require.Eventually(t, func() bool {
		state := env.batch.State(FilterAll)
		return len(state.Queued) == 0
	}, 2*time.Second, 10*time.Millisecond)

	state := env.batch.State(FilterAll)
	assert.Len(t, state.Healthy, 1)
	assert.Empty(t, state.Contaminated)
}

func TestBatchSentinelCountsAsFailed(t *testing.T) {
	classifier := newGatedClassifier()
	release := classifier.expect("img-empty", &inference.Result{NoFruitingBag: true}, nil)

	env := newBatchEnv(t, classifier)
	loginTestUser(t, env.session)

	_, err := env.batch.Enqueue([]byte("img-empty"))
	require.NoError(t, err)
	close(release)

	require.Eventually(t, func() bool {
		return len(env.batch.State(FilterAll).Queued) == 0
	}, 2*time.Second, 10*time.Millisecond)

	state := env.batch.State(FilterAll)
	assert.Empty(t, state.Healthy)
	assert.Empty(t, state.Contaminated)
}

func TestBatchResolveIsIdempotent(t *testing.T) {
	classifier := newGatedClassifier()
	release := classifier.expect("img-1", &inference.Result{Classification: 0, Confidence: 0.9, HasConfidence: true}, nil)

	env := newBatchEnv(t, classifier)
	loginTestUser(t, env.session)

	item, err := env.batch.Enqueue([]byte("img-1"))
	require.NoError(t, err)
	close(release)

	require.Eventually(t, func() bool {
		return len(env.batch.State(FilterAll).Healthy) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// A late duplicate resolution is ignored.
	env.batch.Resolve(item.ID, &inference.Result{Classification: 2, Confidence: 0.5, HasConfidence: true}, nil)

	state := env.batch.State(FilterAll)
	assert.Len(t, state.Healthy, 1)
	assert.Empty(t, state.Contaminated)
}

func TestBatchContaminatedFilter(t *testing.T) {
	classifier := newGatedClassifier()
	releaseGreen := classifier.expect("img-green", &inference.Result{Classification: 1, Confidence: 0.8, HasConfidence: true}, nil)
	releaseBlack := classifier.expect("img-black", &inference.Result{Classification: 2, Confidence: 0.8, HasConfidence: true}, nil)

	env := newBatchEnv(t, classifier)
	loginTestUser(t, env.session)

	_, err := env.batch.Enqueue([]byte("img-green"))
	require.NoError(t, err)
	_, err = env.batch.Enqueue([]byte("img-black"))
	require.NoError(t, err)
	close(releaseGreen)
	close(releaseBlack)

	require.Eventually(t, func() bool {
		return len(env.batch.State(FilterAll).Contaminated) == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Len(t, env.batch.State(FilterGreen).Contaminated, 1)
	assert.Len(t, env.batch.State(FilterBlack).Contaminated, 1)
	assert.Equal(t, models.ClassGreenMold, env.batch.State(FilterGreen).Contaminated[0].Prediction)
	assert.Equal(t, models.ClassBlackMold, env.batch.State(FilterBlack).Contaminated[0].Prediction)
}

func TestBatchDefaultConfidenceApplied(t *testing.T) {
	classifier := newGatedClassifier()
	release := classifier.expect("img-1", &inference.Result{Classification: 1}, nil)

	env := newBatchEnv(t, classifier)
	loginTestUser(t, env.session)

	_, err := env.batch.Enqueue([]byte("img-1"))
	require.NoError(t, err)
	close(release)

	require.Eventually(t, func() bool {
		return len(env.batch.State(FilterAll).Contaminated) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.InDelta(t, defaultBatchConfidence, env.batch.State(FilterAll).Contaminated[0].Confidence, 1e-9)
}

func TestBatchSaveAllAppendsAndClears(t *testing.T) {
	classifier := newGatedClassifier()
	release1 := classifier.expect("img-1", &inference.Result{Classification: 0, Confidence: 0.9, HasConfidence: true}, nil)
	release2 := classifier.expect("img-2", &inference.Result{Classification: 2, Confidence: 0.7, HasConfidence: true}, nil)

	env := newBatchEnv(t, classifier)
	loginTestUser(t, env.session)

	_, err := env.batch.Enqueue([]byte("img-1"))
	require.NoError(t, err)
	_, err = env.batch.Enqueue([]byte("img-2"))
	require.NoError(t, err)
	close(release1)
	close(release2)

	require.Eventually(t, func() bool {
		state := env.batch.State(FilterAll)
		return len(state.Healthy)+len(state.Contaminated) == 2
	}, 2*time.Second, 10*time.Millisecond)

	summary, err := env.batch.SaveAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Saved)
	assert.Equal(t, 0, summary.Failed)

	// Buckets are cleared and the records landed in the local queue.
	state := env.batch.State(FilterAll)
	assert.Empty(t, state.Healthy)
	assert.Empty(t, state.Contaminated)
	assert.Equal(t, 2, env.queue.Count())

	for _, r := range env.queue.List() {
		assert.Equal(t, "grower@example.com", r.OwnerEmail)
	}

	// The detached sync pass eventually confirms both records.
	require.Eventually(t, func() bool {
		return env.queue.PendingCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBatchSaveAllRejectedAnonymous(t *testing.T) {
	env := newBatchEnv(t, newGatedClassifier())

	_, err := env.batch.SaveAll(context.Background())
	assert.ErrorIs(t, err, models.ErrAnonymousScan)
}

func TestBatchSaveAllKeepsResultsResolvedMidSave(t *testing.T) {
	classifier := newGatedClassifier()
	env := newBatchEnv(t, classifier)
	loginTestUser(t, env.session)

	images := []string{"img-a", "img-b", "img-c", "img-d", "img-e", "img-f"}
	releases := make(map[string]chan struct{}, len(images))
	for i, img := range images {
		releases[img] = classifier.expect(img,
			&inference.Result{Classification: i % 3, Confidence: 0.9, HasConfidence: true}, nil)
	}
	for _, img := range images {
		_, err := env.batch.Enqueue([]byte(img))
		require.NoError(t, err)
	}

	for _, img := range images[:3] {
		close(releases[img])
	}
	require.Eventually(t, func() bool {
		state := env.batch.State(FilterAll)
		return len(state.Healthy)+len(state.Contaminated) == 3
	}, 2*time.Second, 5*time.Millisecond)

	// Resolve the rest while the save loop runs; every result must land in
	// one of the two save passes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, img := range images[3:] {
			close(releases[img])
		}
	}()

	first, err := env.batch.SaveAll(context.Background())
	require.NoError(t, err)
	<-done

	require.Eventually(t, func() bool {
		return len(env.batch.State(FilterAll).Queued) == 0
	}, 2*time.Second, 5*time.Millisecond)

	second, err := env.batch.SaveAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(images), first.Saved+second.Saved)
	assert.Equal(t, 0, first.Failed+second.Failed)
	assert.Equal(t, len(images), env.queue.Count())

	state := env.batch.State(FilterAll)
	assert.Empty(t, state.Healthy)
	assert.Empty(t, state.Contaminated)
}
