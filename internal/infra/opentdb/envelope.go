package opentdb

type questionsEnvelope struct {
	ResponseCode int           `json:"response_code"`
	Results      []rawQuestion `json:"results"`
}

type rawQuestion struct {
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Category         string   `json:"category"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

type categoriesEnvelope struct {
	Categories []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"trivia_categories"`
}

type countEnvelope struct {
	CategoryID int `json:"category_id"`
	Counts     struct {
		Total  int `json:"total_question_count"`
		Easy   int `json:"total_easy_question_count"`
		Medium int `json:"total_medium_question_count"`
		Hard   int `json:"total_hard_question_count"`
	} `json:"category_question_count"`
}
