package acceptance_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("task lifecycle", func() {
	var repo *burlRepo

	BeforeEach(func() {
		repo = newBurlRepo()
	})

	AfterEach(func() {
		repo.cleanup()
	})

	It("init creates the workflow worktree, buckets, and a default config; a second init is a no-op", func() {
		out, err := repo.burl("init")
		Expect(err).NotTo(HaveOccurred(), "output: %s", string(out))

		Expect(repo.path(".burl")).To(BeADirectory())
		for _, bucket := range []string{"READY", "DOING", "QA", "DONE", "BLOCKED"} {
			Expect(repo.path(".burl", ".workflow", bucket)).To(BeADirectory())
		}
		Expect(repo.path(".burl", ".workflow", "events")).To(BeADirectory())
		Expect(repo.path(".burl", ".workflow", "locks")).To(BeADirectory())
		Expect(repo.path(".worktrees")).To(BeADirectory())
		Expect(repo.path(".burl", ".workflow", "config.yaml")).To(BeARegularFile())

		branches := runGitOutput(repo.repoDir, "branch", "--list", "burl")
		Expect(branches).To(ContainSubstring("burl"))

		out2, err2 := repo.burl("init")
		Expect(err2).NotTo(HaveOccurred(), "output: %s", string(out2))
		Expect(repo.path(".burl", ".workflow", "config.yaml")).To(BeARegularFile())
	})

	It("add creates a READY task with the requested priority", func() {
		_, err := repo.burl("init")
		Expect(err).NotTo(HaveOccurred())

		out, err := repo.burl("add", "Player jump", "--priority", "high")
		Expect(err).NotTo(HaveOccurred(), "output: %s", string(out))

		matches, globErr := filepath.Glob(repo.path(".burl", ".workflow", "READY", "TASK-001-*"))
		Expect(globErr).NotTo(HaveOccurred())
		Expect(matches).To(HaveLen(1))

		content, readErr := os.ReadFile(matches[0])
		Expect(readErr).NotTo(HaveOccurred())
		Expect(string(content)).To(ContainSubstring("id: TASK-001"))
		Expect(string(content)).To(ContainSubstring("priority: high"))
		Expect(string(content)).To(ContainSubstring("created:"))
	})

	It("drives a task from claim through a failed submit, a fixed submit, approve, and a rejected reclaim", func() {
		_, err := repo.burl("init")
		Expect(err).NotTo(HaveOccurred())
		out, err := repo.burl("add", "Player jump", "--priority", "high")
		Expect(err).NotTo(HaveOccurred(), "output: %s", string(out))

		By("claim")
		out, err = repo.burl("claim", "TASK-001")
		Expect(err).NotTo(HaveOccurred(), "output: %s", string(out))

		doingMatches, globErr := filepath.Glob(repo.path(".burl", ".workflow", "DOING", "TASK-001-*"))
		Expect(globErr).NotTo(HaveOccurred())
		Expect(doingMatches).To(HaveLen(1))

		content, readErr := os.ReadFile(doingMatches[0])
		Expect(readErr).NotTo(HaveOccurred())
		Expect(string(content)).To(ContainSubstring("branch: task-001"))
		Expect(string(content)).To(ContainSubstring("started_at:"))

		branches := runGitOutput(repo.repoDir, "branch", "--list", "task-001-player-jump")
		Expect(branches).To(ContainSubstring("task-001-player-jump"))
		worktreePath := repo.path(".worktrees", "task-001-player-jump")
		Expect(worktreePath).To(BeADirectory())

		By("a commit containing a stub marker fails submit with a scope/stub validation error")
		writeFile(filepath.Join(worktreePath, "src", "player.rs"), "// TODO: cooldown\n")
		runGit(worktreePath, "add", "src/player.rs")
		runGit(worktreePath, "commit", "-m", "add jump stub")

		out, err = repo.burl("submit", "TASK-001")
		Expect(err).To(HaveOccurred())
		Expect(string(out)).To(ContainSubstring("TODO"))
		Expect(string(out)).To(ContainSubstring("player.rs"))

		By("removing the stub and resubmitting moves the task to QA")
		writeFile(filepath.Join(worktreePath, "src", "player.rs"), "fn jump() {}\n")
		runGit(worktreePath, "add", "src/player.rs")
		runGit(worktreePath, "commit", "-m", "finish jump")

		out, err = repo.burl("submit", "TASK-001")
		Expect(err).NotTo(HaveOccurred(), "output: %s", string(out))

		qaMatches, globErr := filepath.Glob(repo.path(".burl", ".workflow", "QA", "TASK-001-*"))
		Expect(globErr).NotTo(HaveOccurred())
		Expect(qaMatches).To(HaveLen(1))
		content, readErr = os.ReadFile(qaMatches[0])
		Expect(readErr).NotTo(HaveOccurred())
		Expect(string(content)).To(ContainSubstring("submitted_at:"))

		events, readErr := os.ReadFile(repo.path(".burl", ".workflow", "events", "events.ndjson"))
		Expect(readErr).NotTo(HaveOccurred())
		Expect(string(events)).To(ContainSubstring(`"commit_count":2`))

		By("reject sends the task back to READY with an incremented qa_attempts and the branch/worktree preserved")
		out, err = repo.burl("reject", "TASK-001", "--reason", "needs a test")
		Expect(err).NotTo(HaveOccurred(), "output: %s", string(out))

		readyMatches, globErr := filepath.Glob(repo.path(".burl", ".workflow", "READY", "TASK-001-*"))
		Expect(globErr).NotTo(HaveOccurred())
		Expect(readyMatches).To(HaveLen(1))
		content, readErr = os.ReadFile(readyMatches[0])
		Expect(readErr).NotTo(HaveOccurred())
		Expect(string(content)).To(ContainSubstring("qa_attempts: 1"))
		Expect(string(content)).To(ContainSubstring("branch: task-001-player-jump"))
		Expect(string(content)).NotTo(ContainSubstring("submitted_at:"))

		By("reclaiming reuses the same branch and worktree")
		out, err = repo.burl("claim", "TASK-001")
		Expect(err).NotTo(HaveOccurred(), "output: %s", string(out))
		redoingMatches, globErr := filepath.Glob(repo.path(".burl", ".workflow", "DOING", "TASK-001-*"))
		Expect(globErr).NotTo(HaveOccurred())
		Expect(redoingMatches).To(HaveLen(1))
		content, readErr = os.ReadFile(redoingMatches[0])
		Expect(readErr).NotTo(HaveOccurred())
		Expect(string(content)).To(ContainSubstring("branch: task-001-player-jump"))

		By("submit then approve merges into main and moves the task to DONE")
		out, err = repo.burl("submit", "TASK-001")
		Expect(err).NotTo(HaveOccurred(), "output: %s", string(out))

		out, err = repo.burl("approve", "TASK-001")
		Expect(err).NotTo(HaveOccurred(), "output: %s", string(out))

		doneMatches, globErr := filepath.Glob(repo.path(".burl", ".workflow", "DONE", "TASK-001-*"))
		Expect(globErr).NotTo(HaveOccurred())
		Expect(doneMatches).To(HaveLen(1))
		content, readErr = os.ReadFile(doneMatches[0])
		Expect(readErr).NotTo(HaveOccurred())
		Expect(string(content)).To(ContainSubstring("completed_at:"))

		mainLog := runGitOutput(repo.repoDir, "log", "--oneline", "main")
		Expect(mainLog).To(ContainSubstring("finish jump"))

		Expect(repo.path(".worktrees", "task-001-player-jump")).NotTo(BeADirectory())
		remainingBranch := runGitOutput(repo.repoDir, "branch", "--list", "task-001-player-jump")
		Expect(remainingBranch).To(BeEmpty())

		By("re-approving a DONE task fails because it is no longer in QA")
		out, err = repo.burl("approve", "TASK-001")
		Expect(err).To(HaveOccurred())
		Expect(string(out)).To(ContainSubstring("QA"))
	})

	It("an auto-claim with two READY tasks moves exactly one of them to DOING", func() {
		_, err := repo.burl("init")
		Expect(err).NotTo(HaveOccurred())
		_, err = repo.burl("add", "first task")
		Expect(err).NotTo(HaveOccurred())
		_, err = repo.burl("add", "second task")
		Expect(err).NotTo(HaveOccurred())

		out1, err1 := repo.burl("claim")
		Expect(err1).NotTo(HaveOccurred(), "output: %s", string(out1))

		doingMatches, globErr := filepath.Glob(repo.path(".burl", ".workflow", "DOING", "TASK-*"))
		Expect(globErr).NotTo(HaveOccurred())
		Expect(doingMatches).To(HaveLen(1))

		readyMatches, globErr := filepath.Glob(repo.path(".burl", ".workflow", "READY", "TASK-*"))
		Expect(globErr).NotTo(HaveOccurred())
		Expect(readyMatches).To(HaveLen(1))
	})
})
