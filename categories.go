/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"go.yaml.in/yaml/v3"

	"github.com/Seednode/quizduel/games/answer"
	"github.com/Seednode/quizduel/games/duel"
)

var ErrNoCategories = errors.New("no categories defined")

type categoryFile struct {
	Categories []duel.Category `yaml:"categories"`
}

// Categories is the read-only question provider shared by every room.
type Categories struct {
	list []duel.Category
	byID map[string]int
}

func (c *Categories) Get(id string) (duel.Category, bool) {
	i, ok := c.byID[id]
	if !ok {
		return duel.Category{}, false
	}
	return c.list[i], true
}

func (c *Categories) List() []duel.Category {
	return c.list
}

func loadCategories(path string) (*Categories, error) {
	if path == "" {
		return newCategories(defaultCategories())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories: %w", err)
	}

	var f categoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse categories %s: %w", path, err)
	}

	return newCategories(f.Categories)
}

func newCategories(list []duel.Category) (*Categories, error) {
	if len(list) == 0 {
		return nil, ErrNoCategories
	}

	c := &Categories{
		list: make([]duel.Category, 0, len(list)),
		byID: make(map[string]int, len(list)),
	}

	for i, cat := range list {
		if cat.ID == "" {
			return nil, fmt.Errorf("category %d has no id", i)
		}
		if _, dup := c.byID[cat.ID]; dup {
			return nil, fmt.Errorf("duplicate category id %q", cat.ID)
		}
		if len(cat.Questions) == 0 {
			return nil, fmt.Errorf("category %q: %w", cat.ID, duel.ErrNoQuestions)
		}

		switch cat.Mode {
		case "":
			cat.Mode = duel.ModeSingle
		case duel.ModeSingle, duel.ModeDual:
		default:
			return nil, fmt.Errorf("category %q: unknown mode %q", cat.ID, cat.Mode)
		}

		if cat.Name == "" {
			cat.Name = cat.ID
		}

		// Snapshots refer to questions by id, so they have to be stable.
		questions := make([]duel.Question, len(cat.Questions))
		copy(questions, cat.Questions)
		seen := make(map[string]bool, len(questions))
		for j := range questions {
			if questions[j].ID == "" {
				questions[j].ID = cat.ID + "-" + strconv.Itoa(j+1)
			}
			if seen[questions[j].ID] {
				return nil, fmt.Errorf("category %q: duplicate question id %q", cat.ID, questions[j].ID)
			}
			seen[questions[j].ID] = true

			if answer.NewProfile(questions[j].Answer, questions[j].Synonyms) == nil {
				logger.Warn("question has no usable answer, voice matching disabled", "category", cat.ID, "question", questions[j].ID)
			}
		}
		cat.Questions = questions

		c.byID[cat.ID] = len(c.list)
		c.list = append(c.list, cat)
	}

	return c, nil
}

func defaultCategories() []duel.Category {
	return []duel.Category{
		{
			ID:   "zwierzeta",
			Name: "Zwierzęta",
			Icon: "🐾",
			Mode: duel.ModeSingle,
			Questions: []duel.Question{
				{Answer: "kot", Synonyms: []string{"kotek", "kocur"}},
				{Answer: "pies", Synonyms: []string{"piesek"}},
				{Answer: "żółw"},
				{Answer: "słoń"},
				{Answer: "niedźwiedź", Synonyms: []string{"miś"}},
				{Answer: "żyrafa"},
				{Answer: "wiewiórka"},
				{Answer: "hipopotam"},
			},
		},
		{
			ID:   "world",
			Name: "Around the world",
			Icon: "🌍",
			Mode: duel.ModeDual,
			Questions: []duel.Question{
				{Answer: "Eiffel Tower", Synonyms: []string{"wieża Eiffla"}},
				{Answer: "Statue of Liberty", Synonyms: []string{"Statua Wolności"}},
				{Answer: "Big Ben"},
				{Answer: "Colosseum", Synonyms: []string{"Koloseum"}},
				{Answer: "Great Wall of China", Synonyms: []string{"Wielki Mur Chiński", "Great Wall"}},
				{Answer: "Pyramids", Synonyms: []string{"piramidy"}},
			},
		},
	}
}
