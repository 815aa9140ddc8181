package relations

import (
	"context"

	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/docstore"
	"github.com/gurpal-04/Autonomous-Scrum-Master/internal/model"
)

// LinkStoryToEpic links a story under an epic.
func (m *Manager) LinkStoryToEpic(ctx context.Context, storyID, epicID string) error {
	return m.Link(ctx, EpicStory, storyID, epicID)
}

// UnlinkStoryFromEpic removes a story from an epic.
func (m *Manager) UnlinkStoryFromEpic(ctx context.Context, storyID, epicID string) error {
	return m.Unlink(ctx, EpicStory, storyID, epicID)
}

// BulkLinkStoriesToEpic links several stories under an epic in one batch.
func (m *Manager) BulkLinkStoriesToEpic(ctx context.Context, epicID string, storyIDs []string) error {
	return m.BulkLink(ctx, EpicStory, epicID, storyIDs)
}

// LinkTaskToStory links a task under a story.
func (m *Manager) LinkTaskToStory(ctx context.Context, taskID, storyID string) error {
	return m.Link(ctx, StoryTask, taskID, storyID)
}

// UnlinkTaskFromStory removes a task from a story.
func (m *Manager) UnlinkTaskFromStory(ctx context.Context, taskID, storyID string) error {
	return m.Unlink(ctx, StoryTask, taskID, storyID)
}

// BulkLinkTasksToStory links several tasks under a story in one batch.
func (m *Manager) BulkLinkTasksToStory(ctx context.Context, storyID string, taskIDs []string) error {
	return m.BulkLink(ctx, StoryTask, storyID, taskIDs)
}

// EpicStories returns the existing stories of an epic.
func (m *Manager) EpicStories(ctx context.Context, epicID string) ([]model.Story, error) {
	docs, err := m.Children(ctx, EpicStory, epicID)
	if err != nil {
		return nil, err
	}
	return docstore.DecodeAll[model.Story](docs)
}

// StoryTasks returns the existing tasks of a story.
func (m *Manager) StoryTasks(ctx context.Context, storyID string) ([]model.Task, error) {
	docs, err := m.Children(ctx, StoryTask, storyID)
	if err != nil {
		return nil, err
	}
	return docstore.DecodeAll[model.Task](docs)
}

// EpicWithStories is an epic and its resolved stories.
type EpicWithStories struct {
	model.Epic
	StoryDocs []model.Story `json:"story_docs"`
}

// EpicsWithStories lists every epic with its stories.
func (m *Manager) EpicsWithStories(ctx context.Context) ([]EpicWithStories, error) {
	families, err := m.ListWithChildren(ctx, EpicStory)
	if err != nil {
		return nil, err
	}
	out := make([]EpicWithStories, 0, len(families))
	for _, f := range families {
		var e EpicWithStories
		if err := f.Parent.DataTo(&e.Epic); err != nil {
			return nil, err
		}
		stories, err := docstore.DecodeAll[model.Story](f.Children)
		if err != nil {
			return nil, err
		}
		e.StoryDocs = stories
		out = append(out, e)
	}
	return out, nil
}

// StoryWithTasks is a story and its resolved tasks.
type StoryWithTasks struct {
	model.Story
	TaskDocs []model.Task `json:"task_docs"`
}

// StoriesWithTasks lists every story with its tasks.
func (m *Manager) StoriesWithTasks(ctx context.Context) ([]StoryWithTasks, error) {
	families, err := m.ListWithChildren(ctx, StoryTask)
	if err != nil {
		return nil, err
	}
	out := make([]StoryWithTasks, 0, len(families))
	for _, f := range families {
		var s StoryWithTasks
		if err := f.Parent.DataTo(&s.Story); err != nil {
			return nil, err
		}
		tasks, err := docstore.DecodeAll[model.Task](f.Children)
		if err != nil {
			return nil, err
		}
		s.TaskDocs = tasks
		out = append(out, s)
	}
	return out, nil
}
