package catalog

import (
	"edulearn-quiz-service/internal/domain"
)

// Catalog is the immutable set of quiz topics, built once at startup.
type Catalog struct {
	order  []string
	topics map[string]domain.Topic
}

// New builds a catalog preserving the given order. Later duplicates win.
func New(topics []domain.Topic) *Catalog {
	c := &Catalog{topics: make(map[string]domain.Topic, len(topics))}
	for _, t := range topics {
		if _, seen := c.topics[t.ID]; !seen {
			c.order = append(c.order, t.ID)
		}
		c.topics[t.ID] = copyTopic(t)
	}
	return c
}

// Lookup returns a copy of the topic with the given id.
func (c *Catalog) Lookup(id string) (domain.Topic, bool) {
	t, ok := c.topics[id]
	if !ok {
		return domain.Topic{}, false
	}
	return copyTopic(t), true
}

// All returns copies of every topic in catalog order.
func (c *Catalog) All() []domain.Topic {
	out := make([]domain.Topic, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, copyTopic(c.topics[id]))
	}
	return out
}

// Len reports the number of topics.
func (c *Catalog) Len() int { return len(c.order) }

// Resolve checks that topicID exists and offers difficulty.
func (c *Catalog) Resolve(topicID, difficulty string) (domain.Topic, error) {
	t, ok := c.Lookup(topicID)
	if !ok {
		return domain.Topic{}, domain.ErrUnknownTopic
	}
	if !t.SupportsDifficulty(difficulty) {
		return domain.Topic{}, &domain.InvalidDifficultyError{Topic: topicID, Valid: t.Difficulties}
	}
	return t, nil
}

func copyTopic(t domain.Topic) domain.Topic {
	t.Difficulties = append([]string(nil), t.Difficulties...)
	t.Subcategories = append([]string(nil), t.Subcategories...)
	return t
}

var allLevels = []string{domain.DifficultyBeginner, domain.DifficultyIntermediate, domain.DifficultyAdvanced}

// Default returns the built-in learning topics.
func Default() *Catalog {
	return New([]domain.Topic{
		{
			ID:            "javascript",
			Name:          "JavaScript Mastery",
			Description:   "Modern JavaScript programming and web development",
			Icon:          "🟨",
			Difficulties:  allLevels,
			Subcategories: []string{"fundamentals", "es6+", "async", "dom-manipulation"},
		},
		{
			ID:            "python",
			Name:          "Python Programming",
			Description:   "Learn Python for data science and web development",
			Icon:          "🐍",
			Difficulties:  allLevels,
			Subcategories: []string{"basics", "oop", "libraries", "data-science"},
		},
		{
			ID:              "algorithms",
			Name:            "Algorithms & Problem Solving",
			Description:     "Master algorithmic thinking and problem-solving techniques",
			Icon:            "🧠",
			Difficulties:    allLevels,
			Subcategories:   []string{"sorting", "searching", "graph-algorithms", "dynamic-programming"},
			ComplexityFocus: true,
		},
		{
			ID:              "datastructures",
			Name:            "Data Structures",
			Description:     "Learn essential data structures for efficient programming",
			Icon:            "📊",
			Difficulties:    allLevels,
			Subcategories:   []string{"arrays", "linked-lists", "trees", "hash-tables", "heaps"},
			ComplexityFocus: true,
		},
		{
			ID:            "webdevelopment",
			Name:          "Web Development",
			Description:   "Full-stack web development with modern frameworks",
			Icon:          "🌐",
			Difficulties:  allLevels,
			Subcategories: []string{"html-css", "react", "nodejs", "databases"},
		},
		{
			ID:            "machinelearning",
			Name:          "Machine Learning",
			Description:   "AI and machine learning concepts and applications",
			Icon:          "🤖",
			Difficulties:  []string{domain.DifficultyIntermediate, domain.DifficultyAdvanced},
			Subcategories: []string{"supervised", "unsupervised", "neural-networks", "deep-learning"},
		},
	})
}
