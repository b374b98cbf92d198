package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"BrandAmbassador-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type videoFixture struct {
	p        *VideoPipeline
	state    *AppState
	store    *memPersistence
	prompts  *fakePrompts
	videos   *fakeVideos
	media    *fakeMedia
	archiver *fakeArchiver
	project  models.Project
}

func newVideoFixture(t *testing.T) *videoFixture {
	t.Helper()
	store := newMemPersistence()
	state := NewAppState(store)
	ctx := context.Background()

	avatar := state.UpsertAvatar(ctx, models.Avatar{
		Name:          "Agent Alex",
		PortraitImage: models.Image{Data: []byte{1}},
		FullBodyImage: &models.Image{MIMEType: "image/jpeg", Data: []byte{2}},
	})
	project := state.CreateProject(ctx, models.Project{Name: "Skyblade", LinkedAvatarID: strPtr(avatar.ID)})

	f := &videoFixture{
		state:    state,
		store:    store,
		prompts:  &fakePrompts{out: "A cinematic\n\nshot of   the tower."},
		videos:   &fakeVideos{media: []byte("mp4")},
		media:    &fakeMedia{},
		archiver: &fakeArchiver{},
		project:  project,
	}
	f.p = NewVideoPipeline(VideoPipelineConfig{
		State:        state,
		Refiner:      f.prompts,
		Videos:       f.videos,
		Media:        f.media,
		Archiver:     f.archiver,
		Enhancer:     NewEnhancer(&fakeText{out: "enhanced"}),
		Machine:      NewMachine(time.Hour, "Ready to generate."),
		PollInterval: time.Millisecond,
	})
	t.Cleanup(func() {
		f.p.Reset()
		f.p.Wait()
	})
	return f
}

func (f *videoFixture) fillForm(t *testing.T) {
	t.Helper()
	form := DefaultVideoForm()
	form.ProjectID = f.project.ID
	form.Script = "Welcome home."
	form.MusicMood = "uplifting"
	require.NoError(t, f.p.SetForm(form))
}

func TestVideoRefineValidation(t *testing.T) {
	f := newVideoFixture(t)

	assert.True(t, IsValidation(f.p.Refine()), "no project")

	form := DefaultVideoForm()
	form.ProjectID = f.project.ID
	require.NoError(t, f.p.SetForm(form))
	assert.True(t, IsValidation(f.p.Refine()), "empty script")

	for _, d := range []string{"4", "61", "30abc"} {
		form.Script = "hi"
		form.Duration = d
		require.NoError(t, f.p.SetForm(form))
		assert.True(t, IsValidation(f.p.Refine()), d)
	}
	assert.Empty(t, f.prompts.fields, "validation never reaches the collaborator")
	assert.Equal(t, PhaseIdle, f.p.Snapshot().Status.Phase)
}

func TestVideoRefineRequiresFullBodyAvatar(t *testing.T) {
	f := newVideoFixture(t)
	ctx := context.Background()
	portraitOnly := f.state.UpsertAvatar(ctx, models.Avatar{Name: "Half", PortraitImage: models.Image{Data: []byte{1}}})
	p := f.state.CreateProject(ctx, models.Project{Name: "Loft", LinkedAvatarID: strPtr(portraitOnly.ID)})

	form := DefaultVideoForm()
	form.ProjectID = p.ID
	form.Script = "hi"
	require.NoError(t, f.p.SetForm(form))
	assert.True(t, IsValidation(f.p.Refine()))

	eligible := f.p.EligibleProjects()
	require.Len(t, eligible, 1)
	assert.Equal(t, f.project.ID, eligible[0].ID)
}

func TestVideoRefineProducesSingleParagraph(t *testing.T) {
	f := newVideoFixture(t)
	f.fillForm(t)

	require.NoError(t, f.p.Refine())
	f.p.Wait()

	snap := f.p.Snapshot()
	assert.Equal(t, PhaseRefined, snap.Status.Phase)
	assert.Equal(t, "A cinematic shot of the tower.", snap.RefinedPrompt)
	require.Len(t, f.prompts.fields, 1)
	assert.Equal(t, "Narration Script: Welcome home.", f.prompts.fields[0].Script)
	assert.Equal(t, "30", f.prompts.fields[0].Duration)
	assert.Contains(t, f.prompts.context[0], "Project Name: Skyblade")
}

func TestVideoRefineFailureKeepsFields(t *testing.T) {
	f := newVideoFixture(t)
	f.fillForm(t)
	f.prompts.err = errors.New("network down")

	require.NoError(t, f.p.Refine())
	f.p.Wait()
	snap := f.p.Snapshot()
	assert.Equal(t, PhaseError, snap.Status.Phase)
	assert.Contains(t, snap.Error, "Failed to refine prompt: network down")
	assert.Equal(t, "Welcome home.", snap.Form.Script)
}

func TestVideoSubmitRequiresRefined(t *testing.T) {
	f := newVideoFixture(t)
	f.fillForm(t)
	assert.True(t, IsValidation(f.p.Submit()))
	assert.Empty(t, f.videos.submitted())
}

func TestVideoPollReachesSuccessOnce(t *testing.T) {
	f := newVideoFixture(t)
	f.fillForm(t)
	f.videos.statuses = []JobStatus{{}, {}, {}, {Done: true, MediaRef: "https://files/video.mp4"}}

	require.NoError(t, f.p.Refine())
	f.p.Wait()
	require.NoError(t, f.p.EditPrompt("Edited prompt"))
	require.NoError(t, f.p.Submit())

	require.Eventually(t, func() bool {
		return f.p.Snapshot().Status.Phase == PhaseSuccess
	}, 2*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return len(f.archiver.enqueued()) == 1 }, 2*time.Second, time.Millisecond)

	assert.Equal(t, 4, f.videos.pollCount())
	assert.Equal(t, []string{"Edited prompt"}, f.videos.submitted())
	saved := f.state.Videos()
	require.Len(t, saved, 1, "success path runs exactly once")
	v := saved[0]
	assert.Equal(t, "Edited prompt", v.Prompt)
	assert.Equal(t, "Skyblade", v.ProjectName)
	assert.Equal(t, "Agent Alex", v.AvatarName)
	assert.Equal(t, "uplifting", v.MusicMood)
	assert.Equal(t, "/media/videos/"+v.ID+".mp4", v.VideoURL)
	assert.Len(t, f.store.savedVideos(), 1)

	snap := f.p.Snapshot()
	require.NotNil(t, snap.Video)
	assert.Equal(t, v.ID, snap.Video.ID)
	assert.Equal(t, "Video generation complete!", snap.Status.Message)
	assert.Equal(t, []string{v.ID}, f.archiver.enqueued())
}

func TestVideoPollDoneWithoutMediaIsError(t *testing.T) {
	f := newVideoFixture(t)
	f.fillForm(t)
	f.videos.statuses = []JobStatus{{}, {Done: true}}

	require.NoError(t, f.p.Refine())
	f.p.Wait()
	require.NoError(t, f.p.Submit())

	require.Eventually(t, func() bool {
		return f.p.Snapshot().Status.Phase == PhaseError
	}, 2*time.Second, time.Millisecond)
	assert.Empty(t, f.state.Videos())
	assert.Contains(t, f.p.Snapshot().Error, "no video URL")
}

func TestVideoPollErrorIsTerminal(t *testing.T) {
	f := newVideoFixture(t)
	f.fillForm(t)
	f.videos.pollErr = errors.New("503")

	require.NoError(t, f.p.Refine())
	f.p.Wait()
	require.NoError(t, f.p.Submit())

	require.Eventually(t, func() bool {
		return f.p.Snapshot().Status.Phase == PhaseError
	}, 2*time.Second, time.Millisecond)
	polls := f.videos.pollCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, polls, f.videos.pollCount(), "no retry after a poll error")
}

func TestVideoSubmitFailure(t *testing.T) {
	f := newVideoFixture(t)
	f.fillForm(t)
	f.videos.submitErr = errors.New("quota")

	require.NoError(t, f.p.Refine())
	f.p.Wait()
	require.NoError(t, f.p.Submit())
	f.p.Wait()

	snap := f.p.Snapshot()
	assert.Equal(t, PhaseError, snap.Status.Phase)
	assert.Contains(t, snap.Error, "Failed to start generation: quota")
}

func TestVideoResetStopsPolling(t *testing.T) {
	f := newVideoFixture(t)
	f.fillForm(t)

	require.NoError(t, f.p.Refine())
	f.p.Wait()
	require.NoError(t, f.p.Submit())
	require.Eventually(t, func() bool { return f.videos.pollCount() > 2 }, 2*time.Second, time.Millisecond)

	f.p.Reset()
	f.p.Wait()
	polls := f.videos.pollCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, polls, f.videos.pollCount())
	snap := f.p.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Status.Phase)
	assert.Equal(t, DefaultVideoForm(), snap.Form)
}

func TestVideoLoadForEditReusesPromptVerbatim(t *testing.T) {
	f := newVideoFixture(t)
	prompt := "  Exact prompt,\nwith odd   spacing.  "
	saved := f.state.AddVideo(context.Background(), models.SavedVideo{
		ProjectID:   f.project.ID,
		Prompt:      prompt,
		Script:      "Old script",
		MusicMood:   "calm",
		Duration:    "15",
		AspectRatio: "9:16",
		VoiceStyle:  "Friendly",
	})

	require.NoError(t, f.p.LoadForEdit(saved.ID))
	snap := f.p.Snapshot()
	assert.Equal(t, PhaseRefined, snap.Status.Phase)
	assert.Equal(t, "Editing previous video. Review and generate.", snap.Status.Message)
	assert.Equal(t, "Old script", snap.Form.Script)
	assert.Equal(t, "9:16", snap.Form.AspectRatio)

	require.NoError(t, f.p.Submit())
	require.Eventually(t, func() bool { return len(f.videos.submitted()) == 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, prompt, f.videos.submitted()[0])
	assert.Empty(t, f.prompts.fields, "refinement is not re-run")

	assert.ErrorIs(t, f.p.LoadForEdit("missing"), ErrNotFound)
}

func TestVideoFormLockedAfterRefine(t *testing.T) {
	f := newVideoFixture(t)
	f.fillForm(t)

	require.NoError(t, f.p.Refine())
	f.p.Wait()
	require.Equal(t, PhaseRefined, f.p.Snapshot().Status.Phase)

	changed := f.p.Snapshot().Form
	changed.Duration = "999"
	changed.Script = "a completely different script"
	assert.True(t, IsValidation(f.p.SetForm(changed)))
	assert.True(t, IsValidation(f.p.EnhanceText(FieldScript)))

	require.NoError(t, f.p.Submit())
	require.Eventually(t, func() bool {
		return f.p.Snapshot().Status.Phase == PhaseSuccess
	}, 2*time.Second, time.Millisecond)

	saved := f.state.Videos()
	require.Len(t, saved, 1)
	assert.Equal(t, "30", saved[0].Duration)
	assert.Equal(t, "Welcome home.", saved[0].Script)
	assert.Equal(t, "A cinematic shot of the tower.", saved[0].Prompt)

	f.p.Reset()
	assert.NoError(t, f.p.SetForm(changed), "editable again after reset")
}
