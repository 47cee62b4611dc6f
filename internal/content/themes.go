// Package content holds the themes and persona templates a game is built from.
// The built-in catalog can be replaced from a YAML file.
package content

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Theme struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Icon        string   `yaml:"icon" json:"icon"`
	Prompts     []string `yaml:"prompts" json:"prompts"`
}

// Prompt returns the discussion prompt for a 1-based round, cycling when the theme
// has fewer prompts than rounds.
func (t Theme) Prompt(round int) string {
	if len(t.Prompts) == 0 {
		return ""
	}
	idx := (round - 1) % len(t.Prompts)
	if idx < 0 {
		idx += len(t.Prompts)
	}
	return t.Prompts[idx]
}

type PersonaTemplate struct {
	Name       string `yaml:"name"`
	Trait      string `yaml:"trait"`
	Occupation string `yaml:"occupation"`
	Avatar     string `yaml:"avatar"`
}

type Catalog struct {
	Themes   []Theme           `yaml:"themes"`
	Personas []PersonaTemplate `yaml:"personas"`
}

// Theme looks a theme up by id.
func (c *Catalog) Theme(id string) (Theme, bool) {
	for _, t := range c.Themes {
		if t.ID == id {
			return t, true
		}
	}
	return Theme{}, false
}

// Load reads a catalog from a YAML file. Sections missing from the file keep their
// built-in values.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var parsed Catalog
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}

	catalog := Default()
	if len(parsed.Themes) > 0 {
		catalog.Themes = parsed.Themes
	}
	if len(parsed.Personas) > 0 {
		catalog.Personas = parsed.Personas
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return catalog, nil
}

func (c *Catalog) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for i, t := range c.Themes {
		if t.ID == "" {
			errs = append(errs, fmt.Errorf("theme %d: missing id", i))
			continue
		}
		if seen[t.ID] {
			errs = append(errs, fmt.Errorf("theme %q: duplicate id", t.ID))
		}
		seen[t.ID] = true
		if len(t.Prompts) == 0 {
			errs = append(errs, fmt.Errorf("theme %q: no prompts", t.ID))
		}
	}

	names := make(map[string]bool)
	for i, p := range c.Personas {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("persona %d: missing name", i))
			continue
		}
		if names[p.Name] {
			errs = append(errs, fmt.Errorf("persona %q: duplicate name", p.Name))
		}
		names[p.Name] = true
	}
	return errors.Join(errs...)
}

// Default returns a fresh copy of the built-in catalog.
func Default() *Catalog {
	return &Catalog{
		Themes: []Theme{
			{
				ID: "space-crew", Name: "Space Crew", Description: "Astronauts on a deep space mission", Icon: "🚀",
				Prompts: []string{
					"Should we investigate that strange signal or stay on course? What do you all think?",
					"The food supply is limited. Which meals should we ration first?",
					"If we could only bring one item from Earth, what would be most useful?",
				},
			},
			{
				ID: "cafe-talk", Name: "Café Talk", Description: "Friends meeting at a cozy coffee shop", Icon: "☕",
				Prompts: []string{
					"Okay debate time: Is coffee or tea actually better? Defend your choice!",
					"If you could only eat one type of cuisine forever, what would you pick?",
					"Hot take: Morning people vs night owls - which are you and why is your way better?",
				},
			},
			{
				ID: "office-party", Name: "Office Party", Description: "Coworkers at a company celebration", Icon: "🎉",
				Prompts: []string{
					"Should we do remote work permanently or go back to the office? Thoughts?",
					"If you could swap jobs with anyone here for a day, who and why?",
					"Okay be honest: Which meetings could have been an email?",
				},
			},
			{
				ID: "college-dorm", Name: "College Dorm", Description: "Students hanging out in the dorm", Icon: "📚",
				Prompts: []string{
					"Is studying in groups actually better or just more distracting? Be real.",
					"If you could drop one class with no consequences, which one would it be?",
					"Okay truth: Are 8am classes a crime against humanity or character building?",
				},
			},
			{
				ID: "mystery-dinner", Name: "Mystery Dinner", Description: "Guests at an elegant dinner party", Icon: "🍷",
				Prompts: []string{
					"Someone here is not who they claim to be. Any theories on who?",
					"If you had to form an alliance with someone here, who would you trust?",
					"What's the most suspicious thing you've noticed tonight? Anyone acting strange?",
				},
			},
			{
				ID: "pizza-debate", Name: "Pizza Night", Description: "Friends ordering pizza together", Icon: "🍕",
				Prompts: []string{
					"Pineapple on pizza - is it genius or a crime? Let's settle this!",
					"What's the most overrated pizza topping? Fight me on this.",
					"Delivery or homemade? Which is actually better and why?",
				},
			},
			{
				ID: "road-trip", Name: "Road Trip", Description: "Friends planning an epic adventure", Icon: "🚗",
				Prompts: []string{
					"Beach, mountains, or city trip? Where should we actually go?",
					"Who's the worst person to be stuck in a car with for 8 hours?",
					"Road trip snacks: what's absolutely essential? No wrong answers... except there are.",
				},
			},
			{
				ID: "movie-night", Name: "Movie Night", Description: "Picking what to watch together", Icon: "🎬",
				Prompts: []string{
					"Horror, comedy, or action? What are we watching tonight?",
					"Unpopular opinion time: which 'classic' movie is actually overrated?",
					"Theater popcorn prices - justified or highway robbery?",
				},
			},
			{
				ID: "gym-buddies", Name: "Gym Squad", Description: "Workout friends at the gym", Icon: "💪",
				Prompts: []string{
					"Cardio or weights? Which one's actually more important?",
					"People who don't wipe down equipment after - thoughts?",
					"Rest days: essential for gains or just an excuse to be lazy?",
				},
			},
			{
				ID: "gaming-session", Name: "Gaming Squad", Description: "Gamers in voice chat", Icon: "🎮",
				Prompts: []string{
					"PC or console? Defend your platform!",
					"Is rage quitting ever justified or are you just salty?",
					"Single player or multiplayer games - which are actually better?",
				},
			},
		},
		Personas: []PersonaTemplate{
			{Name: "Alex", Trait: "analytical and logical", Occupation: "engineer", Avatar: "👨‍💻"},
			{Name: "Sam", Trait: "creative and spontaneous", Occupation: "artist", Avatar: "🎨"},
			{Name: "Jordan", Trait: "friendly and outgoing", Occupation: "teacher", Avatar: "👩‍🏫"},
			{Name: "Taylor", Trait: "witty and sarcastic", Occupation: "comedian", Avatar: "😄"},
			{Name: "Morgan", Trait: "thoughtful and empathetic", Occupation: "counselor", Avatar: "🧘"},
			{Name: "Casey", Trait: "energetic and enthusiastic", Occupation: "fitness coach", Avatar: "💪"},
			{Name: "Riley", Trait: "curious and intellectual", Occupation: "scientist", Avatar: "🔬"},
			{Name: "Jamie", Trait: "calm and collected", Occupation: "meditation instructor", Avatar: "🌸"},
		},
	}
}
