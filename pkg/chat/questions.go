package chat

import "math/rand"

// StartQuestions are opening interviewer questions used when a tree is grown
// without an explicit seed question.
var StartQuestions = []string{
	"自己紹介をしてください",
	"好きな技術について教えてください",
	"あなたの強みについて教えてください",
	"あなたの弱みについて教えてください",
	"これまでチームで成し遂げた経験について教えてください",
	"これまでの失敗について教えてください",
	"どのようなチームで働きたいですか",
	"どのような技術を学びたいですか",
	"どのようなプロジェクトに参加したいですか",
	"どのような軸で就職活動をしていますか",
	"将来のキャリアプランについて教えてください",
	"なぜエンジニアになりたいのですか",
	"なぜ当社に入社したいですか",
	"今一番注目している技術について教えてください",
}

func RandomStartQuestion(rng *rand.Rand) string {
	return StartQuestions[rng.Intn(len(StartQuestions))]
}
