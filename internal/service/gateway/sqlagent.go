package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/sqltavern/askdb/internal/config"
)

const querySystemPrompt = `You are an agent designed to interact with a SQLite database.
Given an input question, write a single syntactically correct SQLite SELECT statement answering it.
Unless the user asks for a specific number of examples, always limit the query to at most {limit} results.
You may order the results by a relevant column to surface the most interesting examples.
NEVER write DML or DDL statements (INSERT, UPDATE, DELETE, DROP and so on).
You have access to the following tables: {tables}
Their schema is:
{ddl}
Return only the SQL statement, with no commentary and no markdown fences.
If the question does not seem related to the database, just return "I don't know" as the answer.`

const repairSystemPrompt = `You are an agent designed to interact with a SQLite database.
The SELECT statement below failed. Rewrite it into a single valid SQLite SELECT statement that answers the question.
You have access to the following tables: {tables}
Their schema is:
{ddl}
Return only the SQL statement, with no commentary and no markdown fences.`

const answerSystemPrompt = `You are an assistant that answers questions about a SQLite database.
The question was answered by running this query:
{query}
It returned:
{result}
Reply to the user with a concise natural-language answer based only on these results.`

// SQLAgent implements Gateway by asking an Ark-hosted model to write a
// SELECT statement, executing it read-only against the SQLite file, and
// phrasing the result. A failing statement gets one rewrite attempt before the
// failure surfaces as ErrUpstream.
type SQLAgent struct {
	queryChain  compose.Runnable[map[string]any, *schema.Message]
	repairChain compose.Runnable[map[string]any, *schema.Message]
	answerChain compose.Runnable[map[string]any, *schema.Message]
	rowLimit    int
}

// NewSQLAgent builds the agent and compiles its chains. Fails with
// ErrMissingCredentials when the model credential is absent.
func NewSQLAgent(ctx context.Context, cfg config.AIConfig, rowLimit int) (*SQLAgent, error) {
	if !cfg.Enabled() {
		return nil, ErrMissingCredentials
	}

	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	queryChain, err := compileChain(ctx, chatModel, querySystemPrompt, "{question}")
	if err != nil {
		return nil, err
	}
	repairChain, err := compileChain(ctx, chatModel, repairSystemPrompt,
		"Question: {question}\nFailed statement: {query}\nError: {error}")
	if err != nil {
		return nil, err
	}
	answerChain, err := compileChain(ctx, chatModel, answerSystemPrompt, "{question}")
	if err != nil {
		return nil, err
	}

	return &SQLAgent{
		queryChain:  queryChain,
		repairChain: repairChain,
		answerChain: answerChain,
		rowLimit:    rowLimit,
	}, nil
}

func compileChain(ctx context.Context, chatModel model.ChatModel, system, user string) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	return runnable, nil
}

// Answer implements Gateway.
func (a *SQLAgent) Answer(ctx context.Context, question, sourcePath string) (string, error) {
	src, err := openSource(sourcePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceNotFound, err)
	}
	defer src.close()

	tables, ddl, err := src.schema(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceNotFound, err)
	}

	response, err := a.queryChain.Invoke(ctx, map[string]any{
		"question": question,
		"tables":   strings.Join(tables, ", "),
		"ddl":      ddl,
		"limit":    a.rowLimit,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	statement := stripFences(response.Content)
	if isRefusal(statement) {
		return statement, nil
	}

	result, execErr := a.execute(ctx, src, statement)
	if execErr != nil {
		// One rewrite attempt, mirroring the agent's verify-and-retry loop.
		log.Printf("[gateway] statement failed, attempting rewrite: %v", execErr)
		statement, result, execErr = a.repair(ctx, src, question, tables, ddl, statement, execErr)
		if execErr != nil {
			return "", fmt.Errorf("%w: %v", ErrUpstream, execErr)
		}
	}

	answer, err := a.answerChain.Invoke(ctx, map[string]any{
		"question": question,
		"query":    statement,
		"result":   result,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	log.Printf("[gateway] answered question, statement=%q, answer_length=%d", statement, len(answer.Content))
	return answer.Content, nil
}

func (a *SQLAgent) execute(ctx context.Context, src *source, statement string) (string, error) {
	if err := validateStatement(statement); err != nil {
		return "", err
	}
	return src.query(ctx, statement, a.rowLimit)
}

func (a *SQLAgent) repair(ctx context.Context, src *source, question string, tables []string, ddl, failed string, cause error) (string, string, error) {
	response, err := a.repairChain.Invoke(ctx, map[string]any{
		"question": question,
		"tables":   strings.Join(tables, ", "),
		"ddl":      ddl,
		"query":    failed,
		"error":    cause.Error(),
	})
	if err != nil {
		return "", "", err
	}

	statement := stripFences(response.Content)
	result, err := a.execute(ctx, src, statement)
	if err != nil {
		return "", "", err
	}
	return statement, result, nil
}

func isRefusal(text string) bool {
	return strings.EqualFold(strings.TrimSuffix(strings.TrimSpace(text), "."), "i don't know")
}
