package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-go-golems/rehearsal/pkg/replytree"
)

// ScriptedGenerator replays canned replies per role in round-robin order. It
// backs `generate --fake` and tests.
type ScriptedGenerator struct {
	replies map[replytree.Role][]string
	mu      sync.Mutex
	index   map[replytree.Role]int
	calls   int
}

var _ replytree.Generator = &ScriptedGenerator{}

func NewScriptedGenerator(interviewer []string, candidate []string) *ScriptedGenerator {
	return &ScriptedGenerator{
		replies: map[replytree.Role][]string{
			replytree.RoleInterviewer: interviewer,
			replytree.RoleCandidate:   candidate,
		},
		index: map[replytree.Role]int{},
	}
}

// DefaultScriptedGenerator has a few plausible lines for each side.
func DefaultScriptedGenerator() *ScriptedGenerator {
	return NewScriptedGenerator(
		[]string{
			"その経験から何を学びましたか？",
			"具体的にはどのような役割を担当しましたか？",
			"チームで意見が対立したときはどうしましたか？",
			"入社後に挑戦したいことは何ですか？",
		},
		[]string{
			"大学の研究でデータ処理の基盤を一人で作りました。",
			"アルバイト先で在庫管理のツールを作り、作業時間を半分にしました。",
			"まず相手の意見を最後まで聞き、共通の目的を確認しました。",
			"ユーザーに近いところで使われるサービスを作りたいです。",
		},
	)
}

func (s *ScriptedGenerator) GenerateReply(ctx context.Context, speaker replytree.Role, transcript []replytree.Utterance) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(transcript) == 0 {
		return "", ErrEmptyTranscript
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	replies := s.replies[speaker]
	if len(replies) == 0 {
		return fmt.Sprintf("%s (%d)", speaker.Label(), s.calls), nil
	}
	reply := replies[s.index[speaker]]
	s.index[speaker] = (s.index[speaker] + 1) % len(replies)
	return reply, nil
}

func (s *ScriptedGenerator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
