package utils

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("哈希密码失败: %v", err)
	}
	if !VerifyCredential("s3cret", hash) {
		t.Fatal("正确密码应通过 bcrypt 验证")
	}
	if VerifyCredential("wrong", hash) {
		t.Fatal("错误密码不应通过 bcrypt 验证")
	}
}

func TestVerifyPlaintextCredential(t *testing.T) {
	if !VerifyCredential("s3cret", "s3cret") {
		t.Fatal("明文相同的密码应通过验证")
	}
	if VerifyCredential("s3cret", "other") {
		t.Fatal("明文不同的密码不应通过验证")
	}
	if VerifyCredential("", "") != true {
		t.Fatal("空密码与空配置应视为相同")
	}
}
