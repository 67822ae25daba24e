package cache

import "fmt"

func PerformanceKey(userID string, quizID uint) string {
	return fmt.Sprintf("quiz:performance:%s:%d", userID, quizID)
}
